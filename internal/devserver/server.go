package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ricochet1k/opencode-term/pkg/api"
)

const (
	writeWait   = 5 * time.Second
	maxBodySize = 1 << 20
)

var errPTYExited = errors.New("pty exited")

type Server struct {
	mgr      *Manager
	logger   *slog.Logger
	version  string
	upgrader websocket.Upgrader
}

func NewServer(mgr *Manager, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		mgr:     mgr,
		logger:  logger,
		version: version,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP surface: the PTY routes and the health check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.Mount(r)
	return r
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/global/health", s.health)
	r.Get("/pty", s.listPTYs)
	r.Post("/pty", s.createPTY)
	r.Get("/pty/{id}", s.getPTY)
	r.Patch("/pty/{id}", s.updatePTY)
	r.Delete("/pty/{id}", s.removePTY)
	r.Get("/pty/{id}/connect", s.connectPTY)
}

func directory(r *http.Request) string {
	return r.URL.Query().Get("directory")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Health{Healthy: true, Version: s.version})
}

func (s *Server) listPTYs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List(directory(r)))
}

func (s *Server) createPTY(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePTYRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	info, err := s.mgr.Create(directory(r), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start pty", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getPTY(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(directory(r), chi.URLParam(r, "id"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) updatePTY(w http.ResponseWriter, r *http.Request) {
	var req api.UpdatePTYRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	info, err := s.mgr.Update(directory(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) removePTY(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Remove(directory(r), chi.URLParam(r, "id")); err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// connectPTY attaches a WebSocket to the PTY. Client frames are written to
// the PTY as they arrive and PTY output is sent back as binary frames. When
// the process exits the socket is closed normally.
func (s *Server) connectPTY(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.mgr.Get(directory(r), id)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := sess.Subscribe()
	defer cancel()

	g, ctx := errgroup.WithContext(r.Context())
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case p, ok := <-updates:
				if !ok {
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "pty exited")
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
					return errPTYExited
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if len(data) == 0 {
				continue
			}
			if _, err := sess.Write(data); err != nil {
				return err
			}
		}
	})

	err = g.Wait()
	s.logger.Debug("pty socket closed", "pty", id, "reason", err)
}

func writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPTYNotFound):
		writeError(w, http.StatusNotFound, "pty not found", "")
	case errors.Is(err, ErrInvalidSize):
		writeError(w, http.StatusBadRequest, "invalid size", err.Error())
	case errors.Is(err, ErrPTYExited):
		writeError(w, http.StatusConflict, "pty has exited", "")
	default:
		writeError(w, http.StatusInternalServerError, "pty operation failed", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	resp := api.ErrorResponse{Error: message}
	if details != "" {
		resp.Details = details
	}
	writeJSON(w, code, resp)
}
