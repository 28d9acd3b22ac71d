package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ricochet1k/opencode-term/internal/terminal"
	"github.com/ricochet1k/opencode-term/internal/transport"
)

// callLog records side effects from every fake in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) indexOf(call string) int {
	for i, c := range l.all() {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeEmulator struct {
	log *callLog

	mu        sync.Mutex
	cols      int
	rows      int
	buffer    strings.Builder
	scrollY   int
	selection string
	keys      []terminal.KeyInput
	sink      func([]byte)
	theme     terminal.Theme
	closed    bool
}

func newFakeEmulator(log *callLog, opts terminal.EmulatorOptions) *fakeEmulator {
	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &fakeEmulator{log: log, cols: cols, rows: rows, theme: opts.Theme}
}

func (e *fakeEmulator) Open(terminal.Container) { e.log.add("emu.open") }

func (e *fakeEmulator) Feed(p []byte) {
	e.log.add("emu.feed %s", p)
	e.mu.Lock()
	e.buffer.Write(p)
	e.mu.Unlock()
}

func (e *fakeEmulator) OnData(fn func([]byte)) {
	e.mu.Lock()
	e.sink = fn
	e.mu.Unlock()
}

// emit simulates the emulator producing bytes for the remote side.
func (e *fakeEmulator) emit(p []byte) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink(p)
	}
}

func (e *fakeEmulator) SendKey(key terminal.KeyInput) error {
	e.mu.Lock()
	e.keys = append(e.keys, key)
	e.mu.Unlock()
	e.log.add("emu.key")
	return nil
}

func (e *fakeEmulator) sentKeys() []terminal.KeyInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]terminal.KeyInput(nil), e.keys...)
}

func (e *fakeEmulator) Paste(text string) error {
	e.emit([]byte(text))
	return nil
}

func (e *fakeEmulator) Resize(cols, rows int) error {
	e.log.add("emu.resize %dx%d", cols, rows)
	e.mu.Lock()
	e.cols, e.rows = cols, rows
	e.mu.Unlock()
	return nil
}

func (e *fakeEmulator) Size() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cols, e.rows
}

func (e *fakeEmulator) Reset() {
	e.log.add("emu.reset")
	e.mu.Lock()
	e.buffer.Reset()
	e.scrollY = 0
	e.mu.Unlock()
}

func (e *fakeEmulator) ScrollTo(y int) {
	e.log.add("emu.scroll %d", y)
	e.mu.Lock()
	e.scrollY = y
	e.mu.Unlock()
}

func (e *fakeEmulator) ScrollY() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollY
}

func (e *fakeEmulator) Focus() { e.log.add("emu.focus") }

func (e *fakeEmulator) Select(sel terminal.Selection) {
	e.mu.Lock()
	if sel.Empty() {
		e.selection = ""
	} else {
		e.selection = fmt.Sprintf("%d,%d-%d,%d", sel.Start.X, sel.Start.Y, sel.End.X, sel.End.Y)
	}
	e.mu.Unlock()
}

func (e *fakeEmulator) HasSelection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection != ""
}

func (e *fakeEmulator) SelectionText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

func (e *fakeEmulator) Serialize() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.String()
}

func (e *fakeEmulator) SupportsThemeUpdate() bool { return true }

func (e *fakeEmulator) SetTheme(theme terminal.Theme) {
	e.mu.Lock()
	e.theme = theme
	e.mu.Unlock()
}

func (e *fakeEmulator) Close() error {
	e.log.add("emu.close")
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEmulator) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// emulatorFactory hands out fakeEmulators, optionally blocking until
// released.
type emulatorFactory struct {
	log     *callLog
	err     error
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
	emus  []*fakeEmulator
}

func (f *emulatorFactory) load(ctx context.Context, opts terminal.EmulatorOptions) (terminal.Emulator, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	emu := newFakeEmulator(f.log, opts)
	f.mu.Lock()
	f.emus = append(f.emus, emu)
	f.mu.Unlock()
	return emu, nil
}

func (f *emulatorFactory) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *emulatorFactory) last(t *testing.T) *fakeEmulator {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.emus) == 0 {
		t.Fatal("no emulator was created")
	}
	return f.emus[len(f.emus)-1]
}

type fakeContainer struct {
	log *callLog

	mu       sync.Mutex
	w, h     int
	onResize func()
	onPoint  func()
	frames   int
}

func (c *fakeContainer) Bounds() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w, c.h
}

func (c *fakeContainer) Draw(terminal.Frame) {
	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
}

func (c *fakeContainer) OnResize(fn func()) terminal.Subscription {
	c.mu.Lock()
	c.onResize = fn
	c.mu.Unlock()
	return terminal.SubscriptionFunc(func() {
		c.log.add("unsubscribe resize")
		c.mu.Lock()
		c.onResize = nil
		c.mu.Unlock()
	})
}

func (c *fakeContainer) OnPointerDown(fn func()) terminal.Subscription {
	c.mu.Lock()
	c.onPoint = fn
	c.mu.Unlock()
	return terminal.SubscriptionFunc(func() {
		c.log.add("unsubscribe pointer")
		c.mu.Lock()
		c.onPoint = nil
		c.mu.Unlock()
	})
}

func (c *fakeContainer) resize(w, h int) {
	c.mu.Lock()
	c.w, c.h = w, h
	fn := c.onResize
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeContainer) pointerDown() {
	c.mu.Lock()
	fn := c.onPoint
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeContainer) listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onResize != nil || c.onPoint != nil
}

type fakeConn struct {
	log     *callLog
	handler transport.Handler

	mu     sync.Mutex
	open   bool
	sent   []string
	closes int
}

func (c *fakeConn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return transport.ErrNotOpen
	}
	c.sent = append(c.sent, string(p))
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close mimics the websocket: the handler hears about the close before
// Close returns.
func (c *fakeConn) Close() error {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.closes++
	c.mu.Unlock()
	c.log.add("conn.close")
	if wasOpen {
		c.handler.HandleClose()
		c.log.add("conn.closed")
	}
	return nil
}

func (c *fakeConn) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeConn) sentData() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type resizeCall struct {
	ep         transport.Endpoint
	cols, rows int
}

type fakeTransport struct {
	log *callLog
	err error
	// beforeReturn runs inside Connect after the handler is known.
	beforeReturn func(h transport.Handler)
	entered      chan struct{}
	release      chan struct{}
	resizeErr    error

	mu       sync.Mutex
	connects int
	conn     *fakeConn
	resizes  chan resizeCall
}

func newFakeTransport(log *callLog) *fakeTransport {
	return &fakeTransport{log: log, resizes: make(chan resizeCall, 16)}
}

func (f *fakeTransport) Connect(ctx context.Context, ep transport.Endpoint, h transport.Handler) (transport.Conn, error) {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	f.log.add("transport.connect %s", ep.PTYID)
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{log: f.log, handler: h, open: true}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	if f.beforeReturn != nil {
		f.beforeReturn(h)
	}
	return conn, nil
}

func (f *fakeTransport) Resize(ctx context.Context, ep transport.Endpoint, cols, rows int) error {
	f.resizes <- resizeCall{ep: ep, cols: cols, rows: rows}
	return f.resizeErr
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		t.Fatal("no connection was opened")
	}
	return f.conn
}

func (f *fakeTransport) waitResize(t *testing.T) resizeCall {
	t.Helper()
	select {
	case call := <-f.resizes:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resize sync")
		return resizeCall{}
	}
}

// recorder captures callback invocations.
type recorder struct {
	mu        sync.Mutex
	states    []State
	errs      []error
	submits   int
	snapshots []terminal.Snapshot
	log       *callLog
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
			if r.log != nil {
				r.log.add("state %s", s.Status)
			}
		},
		OnConnectError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnSubmit: func() {
			r.mu.Lock()
			r.submits++
			r.mu.Unlock()
		},
		OnCleanup: func(s terminal.Snapshot) {
			r.mu.Lock()
			r.snapshots = append(r.snapshots, s)
			r.mu.Unlock()
			if r.log != nil {
				r.log.add("cleanup")
			}
		},
	}
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, s := range r.states {
		out[i] = s.Status
	}
	return out
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) lastState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}
	}
	return r.states[len(r.states)-1]
}
