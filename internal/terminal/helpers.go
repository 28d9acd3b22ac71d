package terminal

import (
	"fmt"
	"strings"

	"github.com/ricochet1k/termemu"
)

// screen is a point-in-time copy of the visible grid.
type screen struct {
	cols  int
	rows  int
	lines []string
}

func captureScreen(term termemu.Terminal) (screen, bool) {
	if term == nil {
		return screen{}, false
	}
	var s screen
	term.WithLock(func() {
		w, h := term.Size()
		if w <= 0 || h <= 0 {
			return
		}
		lines := make([]string, h)
		for y := 0; y < h; y++ {
			lines[y] = term.Line(y)
		}
		s = screen{cols: w, rows: h, lines: lines}
	})
	if s.rows == 0 || s.cols == 0 {
		return screen{}, false
	}
	return s, true
}

// SerializeScreen renders visible lines as a byte stream that redraws them
// in a freshly reset emulator, leaving the cursor at cursor.
func SerializeScreen(lines []string, cursor Cursor) string {
	last := len(lines) - 1
	for last >= 0 && strings.TrimRight(lines[last], " ") == "" {
		last--
	}
	var b strings.Builder
	for i := 0; i <= last; i++ {
		if i > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString(strings.TrimRight(lines[i], " "))
	}
	fmt.Fprintf(&b, "\x1b[%d;%dH", cursor.Y+1, cursor.X+1)
	return b.String()
}
