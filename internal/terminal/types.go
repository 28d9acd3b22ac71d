package terminal

import "github.com/ricochet1k/termemu"

// Theme is the colour triple applied when a frame is drawn.
type Theme struct {
	Background string `json:"background" toml:"background"`
	Foreground string `json:"foreground" toml:"foreground"`
	Cursor     string `json:"cursor" toml:"cursor"`
}

// Snapshot is the serialized state of a terminal: enough to redraw the
// screen, scrollback and cursor in a fresh emulator of the same size.
type Snapshot struct {
	Buffer  string `json:"buffer"`
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	ScrollY int    `json:"scrollY"`
}

type Region struct {
	X  int
	Y  int
	X2 int
	Y2 int
}

type Cursor struct {
	X int
	Y int
}

// Selection is a stream selection from Start (inclusive) to End (exclusive),
// in screen cell coordinates.
type Selection struct {
	Start Cursor
	End   Cursor
}

// Frame is what an emulator hands to its container on every redraw.
type Frame struct {
	Rows    int
	Cols    int
	Lines   []string
	Cursor  Cursor
	ScrollY int
	Focused bool
	Theme   Theme
}

type KeyInput struct {
	Code       termemu.KeyCode
	Rune       rune
	Mod        termemu.KeyMod
	Event      termemu.KeyEventType
	Shifted    rune
	BaseLayout rune
	Text       []rune
}

type ControlSignal int

const (
	ControlInterrupt ControlSignal = iota
	ControlEOF
	ControlSuspend
)
