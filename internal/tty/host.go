// Package tty hosts a terminal session on the local terminal: it is the
// Container the emulator draws into and the source of key input.
package tty

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

const (
	// alternate screen on, focus reporting on
	enterSequence = "\x1b[?1049h\x1b[?1004h"
	leaveSequence = "\x1b[?1004l\x1b[?1049l"
)

// Host is a terminal.Container backed by the process's terminal. Bounds are
// reported in cells, so it pairs with a 1x1 FitAddon.
type Host struct {
	out      io.Writer
	getSize  func() (int, int, error)
	renderer *Renderer

	fd     int
	isTerm bool
	saved  *term.State

	mu       sync.Mutex
	nextID   int
	resize   map[int]func()
	pointer  map[int]func()
	lastDraw string
	cols     int
	rows     int
}

func NewHost(tty *os.File, out io.Writer) *Host {
	fd := int(tty.Fd())
	h := newHost(out, func() (int, int, error) { return term.GetSize(fd) })
	h.fd = fd
	h.isTerm = term.IsTerminal(fd)
	return h
}

func newHost(out io.Writer, getSize func() (int, int, error)) *Host {
	return &Host{
		out:      out,
		getSize:  getSize,
		renderer: NewRenderer(),
		fd:       -1,
		resize:   make(map[int]func()),
		pointer:  make(map[int]func()),
		cols:     terminal.DefaultCols,
		rows:     terminal.DefaultRows,
	}
}

// Start puts the terminal in raw mode and switches to the alternate screen.
func (h *Host) Start() error {
	if h.isTerm {
		st, err := term.MakeRaw(h.fd)
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		h.saved = st
	}
	_, err := io.WriteString(h.out, enterSequence)
	return err
}

// Stop undoes Start. It is safe to call when Start failed.
func (h *Host) Stop() error {
	_, err := io.WriteString(h.out, leaveSequence)
	if h.saved != nil {
		if rerr := term.Restore(h.fd, h.saved); rerr != nil && err == nil {
			err = rerr
		}
		h.saved = nil
	}
	return err
}

func (h *Host) Bounds() (width, height int) {
	cols, rows, err := h.getSize()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil && cols > 0 && rows > 0 {
		h.cols, h.rows = cols, rows
	}
	return h.cols, h.rows
}

func (h *Host) Draw(frame terminal.Frame) {
	out := h.renderer.Render(frame)
	h.mu.Lock()
	defer h.mu.Unlock()
	if out == h.lastDraw {
		return
	}
	h.lastDraw = out
	_, _ = io.WriteString(h.out, out)
}

func (h *Host) OnResize(fn func()) terminal.Subscription {
	return h.subscribe(h.resize, fn)
}

func (h *Host) OnPointerDown(fn func()) terminal.Subscription {
	return h.subscribe(h.pointer, fn)
}

// NotifyResize runs the resize listeners, as a SIGWINCH does.
func (h *Host) NotifyResize() {
	h.notify(h.resize)
}

// NotifyPointerDown runs the pointer listeners. The local terminal reports
// focus-in in place of a pointer press.
func (h *Host) NotifyPointerDown() {
	h.notify(h.pointer)
}

func (h *Host) subscribe(set map[int]func(), fn func()) terminal.Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	set[id] = fn
	h.mu.Unlock()
	return terminal.SubscriptionFunc(func() {
		h.mu.Lock()
		delete(set, id)
		h.mu.Unlock()
	})
}

func (h *Host) notify(set map[int]func()) {
	h.mu.Lock()
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
