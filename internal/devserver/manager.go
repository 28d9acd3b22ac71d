// Package devserver is a local stand-in for the OpenCode PTY API. It runs
// shells under real pseudo-terminals so the client can be developed and
// tested without the AI server.
package devserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/ricochet1k/opencode-term/internal/terminal"
	"github.com/ricochet1k/opencode-term/pkg/api"
)

var (
	ErrPTYNotFound = errors.New("pty not found")
	ErrPTYExited   = errors.New("pty has exited")
	ErrInvalidSize = errors.New("invalid pty size")
)

const (
	readBufferSize   = 32 * 1024
	subscriberBuffer = 256
	maxDimension     = 0xffff
)

// Manager owns the PTYs served by the dev server. Each PTY belongs to the
// directory it was created in and is invisible from any other.
type Manager struct {
	shell  string
	logger *slog.Logger

	mu   sync.RWMutex
	ptys map[string]*Session
}

func NewManager(shell string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		shell:  shell,
		logger: logger,
		ptys:   make(map[string]*Session),
	}
}

// Session is one running PTY and the sockets attached to it.
type Session struct {
	directory string
	ptmx      *os.File
	cmd       *exec.Cmd
	done      chan struct{}

	mu     sync.Mutex
	info   api.PTY
	subs   map[int]*subscriber
	nextID int
	exited bool
}

type subscriber struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (m *Manager) Create(directory string, req api.CreatePTYRequest) (api.PTY, error) {
	command := req.Command
	if command == "" {
		command = m.shell
	}
	if command == "" {
		command = "/bin/sh"
	}
	cwd := req.Cwd
	if cwd == "" {
		cwd = directory
	}

	cmd := exec.Command(command, req.Args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: terminal.DefaultCols,
		Rows: terminal.DefaultRows,
	})
	if err != nil {
		return api.PTY{}, fmt.Errorf("start pty: %w", err)
	}

	title := req.Title
	if title == "" {
		title = filepath.Base(command)
	}
	s := &Session{
		directory: directory,
		ptmx:      ptmx,
		cmd:       cmd,
		done:      make(chan struct{}),
		subs:      make(map[int]*subscriber),
		info: api.PTY{
			ID:      "pty_" + uuid.NewString(),
			Title:   title,
			Command: command,
			Args:    req.Args,
			Cwd:     cwd,
			Status:  api.PTYStatusRunning,
			PID:     cmd.Process.Pid,
		},
	}

	m.mu.Lock()
	m.ptys[s.info.ID] = s
	m.mu.Unlock()

	go s.readLoop(m.logger)
	m.logger.Info("pty started", "pty", s.info.ID, "command", command, "cwd", cwd)
	return s.Info(), nil
}

func (m *Manager) Get(directory, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.ptys[id]
	if !ok || s.directory != directory {
		return nil, ErrPTYNotFound
	}
	return s, nil
}

func (m *Manager) List(directory string) []api.PTY {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.ptys))
	for _, s := range m.ptys {
		if s.directory == directory {
			sessions = append(sessions, s)
		}
	}
	m.mu.RUnlock()

	out := make([]api.PTY, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Update(directory, id string, req api.UpdatePTYRequest) (api.PTY, error) {
	s, err := m.Get(directory, id)
	if err != nil {
		return api.PTY{}, err
	}
	if req.Size != nil {
		if err := s.Resize(req.Size.Cols, req.Size.Rows); err != nil {
			return api.PTY{}, err
		}
	}
	if req.Title != "" {
		s.mu.Lock()
		s.info.Title = req.Title
		s.mu.Unlock()
	}
	return s.Info(), nil
}

// Remove kills the PTY's process and forgets it. Attached sockets are
// closed once the process is gone.
func (m *Manager) Remove(directory, id string) error {
	m.mu.Lock()
	s, ok := m.ptys[id]
	if !ok || s.directory != directory {
		m.mu.Unlock()
		return ErrPTYNotFound
	}
	delete(m.ptys, id)
	m.mu.Unlock()

	s.kill()
	m.logger.Info("pty removed", "pty", id)
	return nil
}

// Close kills every PTY and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.ptys))
	for id, s := range m.ptys {
		sessions = append(sessions, s)
		delete(m.ptys, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.kill()
	}
	for _, s := range sessions {
		<-s.done
	}
}

func (s *Session) Info() api.PTY {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Done is closed once the process has exited and every subscriber has
// been released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Write(p []byte) (int, error) {
	if s.isExited() {
		return 0, ErrPTYExited
	}
	return s.ptmx.Write(p)
}

func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > maxDimension || rows > maxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	if s.isExited() {
		return ErrPTYExited
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Subscribe returns a channel of PTY output and a cancel function. The
// channel is closed when the process exits.
func (s *Session) Subscribe() (<-chan []byte, func()) {
	sub := &subscriber{
		ch:   make(chan []byte, subscriberBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	return sub.ch, func() {
		sub.once.Do(func() {
			close(sub.done)
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) readLoop(logger *slog.Logger) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.broadcast(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Debug("pty read ended", "pty", s.info.ID, "error", err)
			}
			break
		}
	}

	waitErr := s.cmd.Wait()
	_ = s.ptmx.Close()

	s.mu.Lock()
	s.exited = true
	s.info.Status = api.PTYStatusExited
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	close(s.done)
	logger.Info("pty exited", "pty", s.info.ID, "error", waitErr)
}

// broadcast hands p to every subscriber in order. A subscriber that has
// cancelled is skipped; a slow one holds up the PTY.
func (s *Session) broadcast(p []byte) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- p:
		case <-sub.done:
		}
	}
}

func (s *Session) kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	select {
	case <-s.done:
	case <-time.After(time.Second):
		// The read may still be blocked if the child left the
		// terminal open in another process.
		_ = s.ptmx.Close()
	}
}

func (s *Session) isExited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}
