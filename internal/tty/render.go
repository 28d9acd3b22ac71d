package tty

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

// Renderer turns emulator frames into a full-screen redraw for the host.
type Renderer struct {
	mu    sync.Mutex
	theme terminal.Theme
	style lipgloss.Style
}

func NewRenderer() *Renderer {
	return &Renderer{style: lipgloss.NewStyle()}
}

func (r *Renderer) styleFor(theme terminal.Theme) lipgloss.Style {
	r.mu.Lock()
	defer r.mu.Unlock()
	if theme == r.theme {
		return r.style
	}
	style := lipgloss.NewStyle()
	if theme.Background != "" {
		style = style.Background(lipgloss.Color(theme.Background))
	}
	if theme.Foreground != "" {
		style = style.Foreground(lipgloss.Color(theme.Foreground))
	}
	r.theme = theme
	r.style = style
	return style
}

func (r *Renderer) Render(f terminal.Frame) string {
	style := r.styleFor(f.Theme)

	var b strings.Builder
	b.WriteString("\x1b[?25l\x1b[H")
	for y := 0; y < f.Rows; y++ {
		if y > 0 {
			b.WriteString("\r\n")
		}
		line := ""
		if y < len(f.Lines) {
			line = f.Lines[y]
		}
		b.WriteString(style.Render(fitLine(line, f.Cols)))
	}
	b.WriteString("\x1b[J")
	fmt.Fprintf(&b, "\x1b[%d;%dH", f.Cursor.Y+1, f.Cursor.X+1)
	if f.Focused {
		b.WriteString("\x1b[?25h")
	}
	return b.String()
}

// fitLine truncates or pads s to exactly cols cells.
func fitLine(s string, cols int) string {
	if cols <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > cols {
		s = runewidth.Truncate(s, cols, "")
	}
	return runewidth.FillRight(s, cols)
}
