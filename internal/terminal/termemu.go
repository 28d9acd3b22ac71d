package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ricochet1k/termemu"
)

const (
	DefaultCols = 80
	DefaultRows = 24

	// resetSequence is RIS: full reset, clears screen and scrollback.
	resetSequence = "\x1bc"
)

var ErrEmulatorClosed = errors.New("emulator closed")

// queueBackend is the termemu side of a remote PTY. Bytes pushed by Feed are
// handed to the terminal's reader in order; bytes the terminal writes
// (encoded keys and replies to queries) go to the data sink.
type queueBackend struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
	sink   func([]byte)

	// waiting is set while the reader is parked in Read with nothing left
	// to parse.
	waiting bool
}

func newQueueBackend() *queueBackend {
	b := &queueBackend{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *queueBackend) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && !b.closed {
		b.waiting = true
		b.cond.Broadcast()
		b.cond.Wait()
	}
	b.waiting = false
	if b.buf.Len() == 0 {
		return 0, io.EOF
	}
	return b.buf.Read(p)
}

func (b *queueBackend) Write(p []byte) (int, error) {
	b.mu.Lock()
	sink := b.sink
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return 0, ErrEmulatorClosed
	}
	if sink != nil && len(p) > 0 {
		sink(append([]byte(nil), p...))
	}
	return len(p), nil
}

func (b *queueBackend) SetSize(w, h int) error {
	return nil
}

func (b *queueBackend) push(p []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.buf.Write(p)
	b.cond.Broadcast()
	return true
}

// idle waits until every pushed byte has been parsed and the reader is
// parked, then runs fn before the reader can pick up anything new.
func (b *queueBackend) idle(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.closed && (b.buf.Len() > 0 || !b.waiting) {
		b.cond.Wait()
	}
	if fn != nil {
		fn()
	}
}

func (b *queueBackend) setSink(fn func([]byte)) {
	b.mu.Lock()
	b.sink = fn
	b.mu.Unlock()
}

func (b *queueBackend) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

type termemuEmulator struct {
	term     termemu.Terminal
	backend  *queueBackend
	frontend *Frontend
	log      *OutputLog
	events   chan Event
	done     chan struct{}
	loopDone chan struct{}

	mu        sync.Mutex
	container Container
	theme     Theme
	scrollY   int
	focused   bool
	selection *Selection
	cursor    Cursor
	title     string
	closed    bool
}

// LoadTermemu is the default EmulatorFactory.
func LoadTermemu(ctx context.Context, opts EmulatorOptions) (Emulator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}

	e := &termemuEmulator{
		backend:  newQueueBackend(),
		log:      NewOutputLog(opts.ScrollbackBytes),
		events:   make(chan Event, EventBufferSize),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		theme:    opts.Theme,
	}
	e.frontend = NewFrontend(e.events, e.done)
	term := termemu.NewWithMode(e.frontend, e.backend, termemu.TextReadModeRune)
	if term == nil {
		e.backend.close()
		return nil, errors.New("failed to initialize termemu terminal")
	}
	e.term = term
	if err := e.resize(cols, rows); err != nil {
		e.backend.close()
		return nil, err
	}
	go e.run()
	return e, nil
}

func (e *termemuEmulator) run() {
	defer close(e.loopDone)
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.events:
			e.apply(ev)
			// Coalesce a burst into a single redraw.
			for drained := false; !drained; {
				select {
				case ev = <-e.events:
					e.apply(ev)
				default:
					drained = true
				}
			}
			e.redraw()
		}
	}
}

func (e *termemuEmulator) apply(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Kind {
	case EventCursor:
		e.cursor = Cursor{X: ev.X, Y: ev.Y}
	case EventTitle:
		e.title = ev.Title
	}
}

func (e *termemuEmulator) redraw() {
	e.mu.Lock()
	container := e.container
	closed := e.closed
	e.mu.Unlock()
	if container == nil || closed {
		return
	}
	s, ok := captureScreen(e.term)
	if !ok {
		return
	}
	e.mu.Lock()
	frame := Frame{
		Rows:    s.rows,
		Cols:    s.cols,
		Lines:   s.lines,
		Cursor:  e.cursor,
		ScrollY: e.scrollY,
		Focused: e.focused,
		Theme:   e.theme,
	}
	e.mu.Unlock()
	container.Draw(frame)
}

func (e *termemuEmulator) Open(container Container) {
	e.mu.Lock()
	e.container = container
	e.mu.Unlock()
	e.redraw()
}

func (e *termemuEmulator) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	_, _ = e.log.Write(p)
	e.backend.push(p)
}

func (e *termemuEmulator) OnData(fn func([]byte)) {
	e.backend.setSink(fn)
}

func (e *termemuEmulator) SendKey(key KeyInput) error {
	if e.isClosed() {
		return ErrEmulatorClosed
	}
	_, err := e.term.SendKey(key.event())
	return err
}

func (e *termemuEmulator) Paste(text string) error {
	if e.isClosed() {
		return ErrEmulatorClosed
	}
	_, err := e.term.Write([]byte(text))
	return err
}

func (e *termemuEmulator) Resize(cols, rows int) error {
	if e.isClosed() {
		return ErrEmulatorClosed
	}
	if cols <= 0 || rows <= 0 {
		return errors.New("invalid terminal size")
	}
	if err := e.resize(cols, rows); err != nil {
		return err
	}
	e.redraw()
	return nil
}

// resize applies after all output fed so far.
func (e *termemuEmulator) resize(cols, rows int) error {
	var err error
	e.backend.idle(func() {
		e.term.WithLock(func() {
			err = e.term.Resize(cols, rows)
		})
	})
	return err
}

// Sync blocks until all fed output has been applied to the screen.
func (e *termemuEmulator) Sync() {
	e.backend.idle(nil)
}

func (e *termemuEmulator) Size() (cols, rows int) {
	e.term.WithLock(func() {
		cols, rows = e.term.Size()
	})
	return cols, rows
}

func (e *termemuEmulator) Reset() {
	if e.isClosed() {
		return
	}
	e.log.Clear()
	e.mu.Lock()
	e.scrollY = 0
	e.selection = nil
	e.mu.Unlock()
	e.backend.push([]byte(resetSequence))
}

func (e *termemuEmulator) ScrollTo(y int) {
	if y < 0 {
		y = 0
	}
	e.mu.Lock()
	e.scrollY = y
	e.mu.Unlock()
	e.redraw()
}

func (e *termemuEmulator) ScrollY() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollY
}

func (e *termemuEmulator) Focus() {
	e.mu.Lock()
	changed := !e.focused
	e.focused = true
	e.mu.Unlock()
	if changed {
		e.redraw()
	}
}

func (e *termemuEmulator) Select(sel Selection) {
	e.mu.Lock()
	if sel.Start == sel.End {
		e.selection = nil
	} else {
		s := sel
		e.selection = &s
	}
	e.mu.Unlock()
}

func (e *termemuEmulator) HasSelection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection != nil
}

func (e *termemuEmulator) SelectionText() string {
	e.mu.Lock()
	sel := e.selection
	e.mu.Unlock()
	if sel == nil {
		return ""
	}
	s, ok := captureScreen(e.term)
	if !ok {
		return ""
	}
	return SelectText(s.lines, *sel)
}

// Serialize replays the captured output when it is complete. Once the log
// has dropped old output, only the visible screen and cursor are kept.
func (e *termemuEmulator) Serialize() string {
	raw, truncated := e.log.Bytes()
	if !truncated {
		return string(raw)
	}
	s, ok := captureScreen(e.term)
	if !ok {
		return ""
	}
	e.mu.Lock()
	cursor := e.cursor
	e.mu.Unlock()
	return SerializeScreen(s.lines, cursor)
}

func (e *termemuEmulator) SupportsThemeUpdate() bool {
	return true
}

func (e *termemuEmulator) SetTheme(theme Theme) {
	e.mu.Lock()
	e.theme = theme
	e.mu.Unlock()
	e.redraw()
}

func (e *termemuEmulator) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

func (e *termemuEmulator) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.container = nil
	e.mu.Unlock()

	close(e.done)
	e.backend.close()
	<-e.loopDone
	return nil
}

func (e *termemuEmulator) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
