package tty

import (
	"strings"
	"testing"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

func TestFitLine(t *testing.T) {
	tests := []struct {
		in   string
		cols int
		want string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abcd"},
		{"日本語", 4, "日本"},
		{"日本", 5, "日本 "},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := fitLine(tt.in, tt.cols); got != tt.want {
			t.Errorf("fitLine(%q, %d) = %q, want %q", tt.in, tt.cols, got, tt.want)
		}
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer()
	out := r.Render(terminal.Frame{
		Rows:    3,
		Cols:    8,
		Lines:   []string{"$ ls", "file"},
		Cursor:  terminal.Cursor{X: 2, Y: 1},
		Focused: true,
	})

	if !strings.HasPrefix(out, "\x1b[?25l\x1b[H") {
		t.Fatalf("expected redraw to start at home, got %q", out)
	}
	if !strings.Contains(out, "$ ls") || !strings.Contains(out, "file") {
		t.Fatalf("expected both lines, got %q", out)
	}
	if strings.Count(out, "\r\n") != 2 {
		t.Fatalf("expected 3 rows, got %q", out)
	}
	if !strings.HasSuffix(out, "\x1b[2;3H\x1b[?25h") {
		t.Fatalf("expected cursor at row 2 col 3, got %q", out)
	}
}

func TestRenderer_HidesCursorWhenUnfocused(t *testing.T) {
	r := NewRenderer()
	out := r.Render(terminal.Frame{Rows: 1, Cols: 4, Lines: []string{"x"}})
	if strings.HasSuffix(out, "\x1b[?25h") {
		t.Fatalf("expected cursor to stay hidden, got %q", out)
	}
}

func TestRenderer_ThemeChange(t *testing.T) {
	r := NewRenderer()
	theme := terminal.Theme{Background: "#000000", Foreground: "#ffffff"}
	r.Render(terminal.Frame{Rows: 1, Cols: 4, Theme: theme})
	if r.theme != theme {
		t.Fatalf("renderer theme = %+v, want %+v", r.theme, theme)
	}
}
