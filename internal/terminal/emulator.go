package terminal

import "context"

// Subscription is returned by every listener registration on a Container.
// Unsubscribe removes exactly that listener and is safe to call twice.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a plain function to a Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// Container is the host surface an emulator renders into. It is borrowed:
// the emulator draws into it and listens on it but never tears it down.
type Container interface {
	// Bounds reports the drawable area in container units; FitAddon divides
	// it by the cell metrics.
	Bounds() (width, height int)
	Draw(frame Frame)
	OnResize(fn func()) Subscription
	OnPointerDown(fn func()) Subscription
}

// Emulator interprets the byte stream coming from a remote PTY and renders it.
type Emulator interface {
	Open(container Container)
	// Feed writes server output into the emulator, in call order.
	Feed(p []byte)
	// OnData sets the sink for bytes the emulator produces for the remote
	// side: encoded keys, pastes and terminal replies.
	OnData(fn func([]byte))
	SendKey(key KeyInput) error
	Paste(text string) error
	Resize(cols, rows int) error
	Size() (cols, rows int)
	Reset()
	ScrollTo(y int)
	ScrollY() int
	Focus()
	Select(sel Selection)
	HasSelection() bool
	SelectionText() string
	Serialize() string
	Close() error
}

// Syncer is implemented by emulators that apply fed output asynchronously.
type Syncer interface {
	Sync()
}

// ThemeSetter is implemented by emulators that can recolour a live session.
type ThemeSetter interface {
	SupportsThemeUpdate() bool
	SetTheme(theme Theme)
}

type EmulatorOptions struct {
	Theme Theme
	Cols  int
	Rows  int
	// ScrollbackBytes bounds the replay log used by Serialize.
	ScrollbackBytes int
}

// EmulatorFactory loads an emulator engine. Loading may block; ctx bounds it.
type EmulatorFactory func(ctx context.Context, opts EmulatorOptions) (Emulator, error)
