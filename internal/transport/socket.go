package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

var (
	ErrNotOpen = errors.New("socket is not open")
	ErrClosed  = errors.New("socket closed")
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	writeWait               = 5 * time.Second
	closeGrace              = time.Second
)

// Handler receives everything that happens on a socket after Dial returns.
// HandleMessage is called in arrival order from a single goroutine. Exactly
// one of HandleError or HandleClose is called, after the last message.
type Handler interface {
	HandleMessage(data []byte)
	HandleError(err error)
	HandleClose()
}

// Socket is the raw byte stream to a remote PTY.
type Socket struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	open    bool
	closing bool

	done chan struct{}
}

// ConnectURL builds the websocket address for ep.
func ConnectURL(ep Endpoint) (string, error) {
	if err := ep.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(ep.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u = u.JoinPath("pty", ep.PTYID, "connect")
	q := u.Query()
	if ep.Directory != "" {
		q.Set("directory", ep.Directory)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type DialOptions struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// Dial opens the PTY stream and returns once the socket is open. The
// handler starts receiving messages immediately.
func Dial(ctx context.Context, ep Endpoint, h Handler, opts DialOptions) (*Socket, error) {
	if h == nil {
		return nil, errors.New("handler is required")
	}
	target, err := ConnectURL(ep)
	if err != nil {
		return nil, err
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect pty %s: %w (status %d)", ep.PTYID, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connect pty %s: %w", ep.PTYID, err)
	}

	s := &Socket{
		conn: conn,
		open: true,
		done: make(chan struct{}),
	}
	go s.readLoop(h)
	return s, nil
}

func (s *Socket) readLoop(h Handler) {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(h, err)
			return
		}
		if len(data) == 0 {
			continue
		}
		h.HandleMessage(data)
	}
}

func (s *Socket) finish(h Handler, err error) {
	s.mu.Lock()
	s.open = false
	local := s.closing
	s.mu.Unlock()
	_ = s.conn.Close()

	var closeErr *websocket.CloseError
	switch {
	case local:
		h.HandleClose()
	case errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure:
		h.HandleClose()
	default:
		h.HandleError(err)
	}
}

// Send writes p as a single frame. Valid UTF-8 goes out as a text frame.
func (s *Socket) Send(p []byte) error {
	if !s.Open() {
		return ErrNotOpen
	}
	mt := websocket.BinaryMessage
	if utf8.Valid(p) {
		mt = websocket.TextMessage
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(mt, p)
}

func (s *Socket) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.closing
}

// Done is closed after the handler's final callback has returned.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Close performs the closing handshake and waits for the read loop to end.
// The handler sees HandleClose. Close is idempotent, and returns at once when
// the stream has already ended, including from inside a handler callback.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closing || !s.open {
		s.closing = true
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(closeGrace):
		_ = s.conn.Close()
		<-s.done
	}
	return nil
}
