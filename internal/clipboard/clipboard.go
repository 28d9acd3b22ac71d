// Package clipboard copies terminal selections to the user's clipboard,
// falling back to an OSC 52 escape when no system clipboard is reachable.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

type Method uint8

const (
	MethodSystem Method = iota
	MethodOSC52
)

func (m Method) String() string {
	if m == MethodOSC52 {
		return "osc52"
	}
	return "system"
}

// DisableOSC52Env turns the escape-sequence fallback off when set to a true
// value.
const DisableOSC52Env = "OPENCODE_TERM_DISABLE_OSC52"

var ErrOSC52Unavailable = errors.New("OSC52 unavailable for this terminal")

var (
	writeSystem = clipboard.WriteAll
	writeOSC52  = writeOSC52ToTTY
	openTTY     = func() (io.WriteCloser, error) {
		return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	}
)

// Copy puts text on the clipboard and reports which path succeeded.
func Copy(text string) (Method, error) {
	sysErr := writeSystem(text)
	if sysErr == nil {
		return MethodSystem, nil
	}
	oscErr := writeOSC52(text)
	if oscErr == nil {
		return MethodOSC52, nil
	}
	return MethodSystem, fmt.Errorf("system clipboard: %s; OSC52 fallback: %w", describe(sysErr), oscErr)
}

// CopyText is Copy without the method, for use as a controller clipboard.
func CopyText(text string) error {
	_, err := Copy(text)
	return err
}

func writeOSC52ToTTY(text string) error {
	if !osc52Enabled() {
		return ErrOSC52Unavailable
	}
	tty, err := openTTY()
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()
	return WriteOSC52(tty, text)
}

// WriteOSC52 writes the clipboard escape for text, wrapped for tmux or
// screen when running inside one.
func WriteOSC52(w io.Writer, text string) error {
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		// Plain first: tmux with set-clipboard on forwards it directly.
		if _, err := seq.WriteTo(w); err != nil {
			return err
		}
		_, err := seq.Tmux().WriteTo(w)
		return err
	case strings.HasPrefix(strings.ToLower(os.Getenv("TERM")), "screen"):
		_, err := seq.Screen().WriteTo(w)
		return err
	default:
		_, err := seq.WriteTo(w)
		return err
	}
}

func osc52Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(DisableOSC52Env))) {
	case "1", "true", "yes", "on":
		return false
	}
	term := strings.TrimSpace(os.Getenv("TERM"))
	return term != "" && !strings.EqualFold(term, "dumb")
}

func describe(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "exit status 1" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return "no GUI clipboard available (DISPLAY/WAYLAND_DISPLAY unset)"
	}
	return msg
}
