package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ricochet1k/opencode-term/internal/terminal"
	"github.com/ricochet1k/opencode-term/internal/transport"
)

var (
	ErrDisposed         = errors.New("cannot initialize a disposed controller")
	ErrConnectionClosed = errors.New("connection closed before it was established")
)

const DefaultResizeTimeout = 5 * time.Second

// Config describes one terminal session. It is fixed for the lifetime of a
// controller.
type Config struct {
	PTYID     string
	Directory string
	ServerURL string
	Theme     terminal.Theme
	// Restore, when it carries a buffer, is replayed into the emulator
	// before the transport is opened.
	Restore *terminal.Snapshot
	Layout  Layout
	// ScrollbackBytes bounds the output kept for snapshots.
	ScrollbackBytes int
}

func (c Config) endpoint() transport.Endpoint {
	return transport.Endpoint{ServerURL: c.ServerURL, PTYID: c.PTYID, Directory: c.Directory}
}

// Callbacks are the host's hooks. Every field is optional. Callbacks never
// run while the controller holds its lock, so they may call back into it.
type Callbacks struct {
	OnStateChange  func(State)
	OnConnectError func(error)
	OnSubmit       func()
	// OnCleanup receives the final snapshot during Dispose, before the
	// transport is closed.
	OnCleanup func(terminal.Snapshot)
}

// Transport opens PTY streams and carries the out-of-band resize call.
type Transport interface {
	Connect(ctx context.Context, ep transport.Endpoint, h transport.Handler) (transport.Conn, error)
	Resize(ctx context.Context, ep transport.Endpoint, cols, rows int) error
}

type Options struct {
	Emulators     terminal.EmulatorFactory
	Transport     Transport
	Clipboard     func(text string) error
	Fit           terminal.FitAddon
	ResizeTimeout time.Duration
	Logger        *slog.Logger
}

// Controller owns one terminal session: the emulator, the socket to the
// remote PTY and the lifecycle state that ties them together.
type Controller struct {
	opts   Options
	logger *slog.Logger
	subs   *stateBroadcaster

	mu         sync.Mutex
	state      State
	disposing  bool
	initDone   chan struct{}
	initErr    error
	cancelInit context.CancelFunc

	container  terminal.Container
	cfg        Config
	cb         Callbacks
	emu        terminal.Emulator
	conn       transport.Conn
	resizeSub  terminal.Subscription
	pointerSub terminal.Subscription

	// pending holds notifications in transition order; emitMu admits one
	// drainer at a time. draining is set while a callback runs.
	pending  []func()
	draining bool
	emitMu   sync.Mutex
}

func New(opts Options) *Controller {
	if opts.Emulators == nil {
		opts.Emulators = terminal.LoadTermemu
	}
	if opts.Fit.CellWidth <= 0 || opts.Fit.CellHeight <= 0 {
		opts.Fit = terminal.NewFitAddon(opts.Fit.CellWidth, opts.Fit.CellHeight)
	}
	if opts.ResizeTimeout <= 0 {
		opts.ResizeTimeout = DefaultResizeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		opts:   opts,
		logger: logger,
		subs:   newStateBroadcaster(),
		state:  State{Status: StatusIdle},
	}
}

// Initialize loads the emulator into container and connects it to the
// remote PTY. Only the first call does the work; later and concurrent calls
// wait for it and return the same result. A call made from inside a callback
// does not wait. Connection failures are reported
// through the error state and OnConnectError, not as a return value.
// Initialize returns ErrDisposed once Dispose has been called.
func (c *Controller) Initialize(ctx context.Context, container terminal.Container, cfg Config, cb Callbacks) error {
	c.mu.Lock()
	if c.disposing {
		c.mu.Unlock()
		return ErrDisposed
	}
	if done := c.initDone; done != nil {
		if c.draining {
			// Inside a callback the first call may be the one waiting on us.
			defer c.mu.Unlock()
			select {
			case <-done:
				return c.initErr
			default:
				return nil
			}
		}
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.opts.Transport == nil {
		c.mu.Unlock()
		return errors.New("controller has no transport")
	}

	done := make(chan struct{})
	initCtx, cancel := context.WithCancel(ctx)
	c.initDone = done
	c.cancelInit = cancel
	c.container = container
	c.cfg = cfg
	c.cb = cb
	c.transitionLocked(State{Status: StatusLoading})
	c.mu.Unlock()
	c.flush()

	err := c.initialize(initCtx)
	cancel()

	c.mu.Lock()
	c.initErr = err
	c.cancelInit = nil
	c.mu.Unlock()
	close(done)
	return err
}

func (c *Controller) initialize(ctx context.Context) error {
	c.mu.Lock()
	cfg, container := c.cfg, c.container
	c.mu.Unlock()

	opts := terminal.EmulatorOptions{Theme: cfg.Theme, ScrollbackBytes: cfg.ScrollbackBytes}
	if cfg.Restore != nil {
		opts.Cols, opts.Rows = cfg.Restore.Cols, cfg.Restore.Rows
	}
	emu, err := c.opts.Emulators(ctx, opts)
	if c.isDisposing() {
		if emu != nil {
			_ = emu.Close()
		}
		return nil
	}
	if err != nil {
		c.fail(err)
		return nil
	}

	emu.OnData(c.forward)
	emu.Open(container)
	if cfg.Restore.HasBuffer() {
		if err := terminal.Restore(emu, *cfg.Restore); err != nil {
			c.logger.Warn("restore terminal snapshot", "pty", cfg.PTYID, "error", err)
		}
	}
	if _, _, _, err := c.opts.Fit.Fit(emu, container); err != nil {
		c.logger.Debug("fit terminal", "pty", cfg.PTYID, "error", err)
	}
	resizeSub := container.OnResize(c.Fit)
	pointerSub := container.OnPointerDown(emu.Focus)

	c.mu.Lock()
	if c.disposing {
		c.mu.Unlock()
		unsubscribe(resizeSub)
		unsubscribe(pointerSub)
		_ = emu.Close()
		return nil
	}
	c.emu = emu
	c.resizeSub = resizeSub
	c.pointerSub = pointerSub
	c.mu.Unlock()

	conn, err := c.opts.Transport.Connect(ctx, cfg.endpoint(), &sessionHandler{c: c})

	c.mu.Lock()
	if c.disposing {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.fail(err)
		return nil
	}
	c.conn = conn
	if c.state.Status != StatusLoading {
		// The socket already failed or closed from its own goroutine.
		c.mu.Unlock()
		return nil
	}
	c.transitionLocked(State{Status: StatusConnected})
	c.mu.Unlock()
	c.flush()

	cols, rows := emu.Size()
	c.syncSize(cols, rows)
	return nil
}

// Dispose tears the session down: listeners first, then the final snapshot
// for OnCleanup, then the socket, then the emulator. It is safe to call at
// any time and more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposing {
		c.mu.Unlock()
		return
	}
	c.disposing = true
	if c.cancelInit != nil {
		c.cancelInit()
	}
	resizeSub, pointerSub := c.resizeSub, c.pointerSub
	emu, conn := c.emu, c.conn
	onCleanup := c.cb.OnCleanup
	c.mu.Unlock()

	unsubscribe(resizeSub)
	unsubscribe(pointerSub)
	if emu != nil && onCleanup != nil {
		onCleanup(terminal.Capture(emu))
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("close pty socket", "error", err)
		}
	}
	if emu != nil {
		if err := emu.Close(); err != nil {
			c.logger.Debug("close emulator", "error", err)
		}
	}

	c.mu.Lock()
	c.emu = nil
	c.conn = nil
	c.resizeSub = nil
	c.pointerSub = nil
	c.container = nil
	c.transitionLocked(State{Status: StatusDisposed})
	c.pending = append(c.pending, c.subs.Close)
	c.mu.Unlock()
	c.flush()
}

// Snapshot captures the live terminal. It returns nil before the emulator
// is loaded and after disposal.
func (c *Controller) Snapshot() *terminal.Snapshot {
	emu := c.emulator()
	if emu == nil {
		return nil
	}
	snap := terminal.Capture(emu)
	return &snap
}

// Input forwards raw bytes to the remote PTY. Input is dropped while the
// socket is not open.
func (c *Controller) Input(p []byte) {
	if len(p) == 0 {
		return
	}
	c.forward(append([]byte(nil), p...))
}

func (c *Controller) Paste(text string) {
	emu := c.emulator()
	if emu == nil || text == "" {
		return
	}
	if err := emu.Paste(text); err != nil {
		c.logger.Debug("paste", "error", err)
	}
}

// HandleKey runs a key through the copy and reserved chords before handing
// it to the emulator. It reports whether the key was consumed.
func (c *Controller) HandleKey(key terminal.KeyInput) bool {
	c.mu.Lock()
	emu, layout := c.emu, c.cfg.Layout
	if c.disposing {
		emu = nil
	}
	c.mu.Unlock()
	if emu == nil {
		return false
	}

	switch classifyKey(key, layout) {
	case keySwallow:
		return true
	case keyCopy:
		if emu.HasSelection() {
			c.copy(emu.SelectionText())
			return true
		}
	}

	if err := emu.SendKey(key); err != nil {
		c.logger.Debug("send key", "error", err)
	}
	if isSubmitKey(key) {
		c.mu.Lock()
		if onSubmit := c.cb.OnSubmit; onSubmit != nil && !c.disposing {
			c.pending = append(c.pending, onSubmit)
		}
		c.mu.Unlock()
		c.flush()
	}
	return true
}

func (c *Controller) copy(text string) {
	if text == "" || c.opts.Clipboard == nil {
		return
	}
	if err := c.opts.Clipboard(text); err != nil {
		c.logger.Debug("copy selection", "error", err)
	}
}

func (c *Controller) Select(sel terminal.Selection) {
	if emu := c.emulator(); emu != nil {
		emu.Select(sel)
	}
}

// SetTheme recolours a live emulator when it supports it. The theme is kept
// either way and reported by Config.
func (c *Controller) SetTheme(theme terminal.Theme) {
	c.mu.Lock()
	if c.disposing {
		c.mu.Unlock()
		return
	}
	c.cfg.Theme = theme
	emu := c.emu
	c.mu.Unlock()

	if ts, ok := emu.(terminal.ThemeSetter); ok && ts.SupportsThemeUpdate() {
		ts.SetTheme(theme)
	}
}

// Fit resizes the emulator to its container and, when connected, tells the
// server about the new size.
func (c *Controller) Fit() {
	c.mu.Lock()
	emu, container := c.emu, c.container
	if c.disposing {
		emu = nil
	}
	c.mu.Unlock()
	if emu == nil || container == nil {
		return
	}
	cols, rows, changed, err := c.opts.Fit.Fit(emu, container)
	if err != nil {
		c.logger.Debug("fit terminal", "error", err)
		return
	}
	if changed {
		c.syncSize(cols, rows)
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Subscribe returns a channel of subsequent state transitions and a cancel
// function. The channel is closed once the controller is disposed.
func (c *Controller) Subscribe(buffer int) (<-chan State, func()) {
	return c.subs.Subscribe(buffer)
}

func (c *Controller) emulator() terminal.Emulator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposing {
		return nil
	}
	return c.emu
}

func (c *Controller) isDisposing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposing
}

func (c *Controller) forward(p []byte) {
	c.mu.Lock()
	conn := c.conn
	if c.disposing {
		conn = nil
	}
	c.mu.Unlock()
	if conn == nil || !conn.Open() {
		c.logger.Debug("dropping input, socket not open", "bytes", len(p))
		return
	}
	if err := conn.Send(p); err != nil {
		c.logger.Debug("send input", "error", err)
	}
}

// syncSize pushes the grid size to the server without waiting for it.
// Failures are logged and dropped.
func (c *Controller) syncSize(cols, rows int) {
	c.mu.Lock()
	if c.disposing || c.state.Status != StatusConnected {
		c.mu.Unlock()
		return
	}
	ep := c.cfg.endpoint()
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ResizeTimeout)
		defer cancel()
		if err := c.opts.Transport.Resize(ctx, ep, cols, rows); err != nil {
			c.logger.Debug("resize sync failed", "pty", ep.PTYID, "cols", cols, "rows", rows, "error", err)
		}
	}()
}

// fail moves a loading or connected session to the error state.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.disposing || (c.state.Status != StatusLoading && c.state.Status != StatusConnected) {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(State{Status: StatusError, Cause: err})
	if onErr := c.cb.OnConnectError; onErr != nil {
		c.pending = append(c.pending, func() { onErr(err) })
	}
	c.mu.Unlock()
	c.logger.Warn("terminal connection failed", "error", err)
	c.flush()
}

func (c *Controller) closed() {
	c.mu.Lock()
	switch {
	case c.disposing:
		c.mu.Unlock()
	case c.state.Status == StatusLoading:
		c.mu.Unlock()
		c.fail(ErrConnectionClosed)
	case c.state.Status == StatusConnected:
		c.transitionLocked(State{Status: StatusDisconnected})
		c.mu.Unlock()
		c.flush()
	default:
		c.mu.Unlock()
	}
}

// transitionLocked records s and queues its notifications. Nothing moves a
// disposed controller, and once disposal has begun only the final disposed
// transition is accepted.
func (c *Controller) transitionLocked(s State) {
	if c.state.Status == StatusDisposed {
		return
	}
	if c.disposing && s.Status != StatusDisposed {
		return
	}
	c.state = s
	if onChange := c.cb.OnStateChange; onChange != nil {
		c.pending = append(c.pending, func() { onChange(s) })
	}
	c.pending = append(c.pending, func() { c.subs.Broadcast(s) })
}

// flush delivers queued notifications outside the lock. A call made while
// another goroutine, or an enclosing callback, is draining returns at once;
// the active drainer picks the new entries up.
func (c *Controller) flush() {
	for {
		if !c.emitMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			c.draining = false
			if len(c.pending) == 0 {
				c.mu.Unlock()
				break
			}
			fn := c.pending[0]
			c.pending[0] = nil
			c.pending = c.pending[1:]
			c.draining = true
			c.mu.Unlock()
			fn()
		}
		c.emitMu.Unlock()

		c.mu.Lock()
		more := len(c.pending) > 0
		c.mu.Unlock()
		if !more {
			return
		}
	}
}

func unsubscribe(sub terminal.Subscription) {
	if sub != nil {
		sub.Unsubscribe()
	}
}

// sessionHandler receives socket events for the controller.
type sessionHandler struct {
	c *Controller
}

func (h *sessionHandler) HandleMessage(data []byte) {
	if emu := h.c.emulator(); emu != nil {
		emu.Feed(data)
	}
}

func (h *sessionHandler) HandleError(err error) {
	h.c.fail(err)
}

func (h *sessionHandler) HandleClose() {
	h.c.closed()
}
