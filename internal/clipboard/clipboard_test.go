package clipboard

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func stubWriters(t *testing.T, system, osc func(string) error) {
	t.Helper()
	origSystem, origOSC := writeSystem, writeOSC52
	t.Cleanup(func() {
		writeSystem, writeOSC52 = origSystem, origOSC
	})
	writeSystem, writeOSC52 = system, osc
}

func TestCopy_UsesSystemClipboard(t *testing.T) {
	oscCalled := false
	stubWriters(t,
		func(string) error { return nil },
		func(string) error { oscCalled = true; return nil },
	)

	method, err := Copy("hello")
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if method != MethodSystem || oscCalled {
		t.Fatalf("method = %v, oscCalled = %v", method, oscCalled)
	}
}

func TestCopy_FallsBackToOSC52(t *testing.T) {
	var got string
	stubWriters(t,
		func(string) error { return errors.New("exit status 1") },
		func(text string) error { got = text; return nil },
	)

	method, err := Copy("hello")
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if method != MethodOSC52 || got != "hello" {
		t.Fatalf("method = %v, copied %q", method, got)
	}
}

func TestCopy_BothFail(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	stubWriters(t,
		func(string) error { return errors.New("exit status 1") },
		func(string) error { return ErrOSC52Unavailable },
	)

	err := CopyText("hello")
	if !errors.Is(err, ErrOSC52Unavailable) {
		t.Fatalf("expected ErrOSC52Unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no GUI clipboard available") {
		t.Fatalf("expected display hint, got %q", err)
	}
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestWriteOSC52ToTTY_ClosesTTY(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("TMUX", "")
	t.Setenv(DisableOSC52Env, "")
	tty := &closeRecorder{}
	origOpen := openTTY
	t.Cleanup(func() { openTTY = origOpen })
	openTTY = func() (io.WriteCloser, error) { return tty, nil }

	if err := writeOSC52ToTTY("hi"); err != nil {
		t.Fatalf("writeOSC52ToTTY failed: %v", err)
	}
	if !tty.closed {
		t.Fatal("tty should be closed after writing")
	}
	if !strings.HasPrefix(tty.String(), "\x1b]52;") {
		t.Fatalf("unexpected sequence %q", tty.String())
	}
}

func TestWriteOSC52ToTTY_OpenError(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv(DisableOSC52Env, "")
	origOpen := openTTY
	t.Cleanup(func() { openTTY = origOpen })
	openTTY = func() (io.WriteCloser, error) { return nil, os.ErrNotExist }

	err := writeOSC52ToTTY("hi")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestWriteOSC52ToTTY_Disabled(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv(DisableOSC52Env, "true")
	if err := writeOSC52ToTTY("hi"); !errors.Is(err, ErrOSC52Unavailable) {
		t.Fatalf("expected ErrOSC52Unavailable, got %v", err)
	}
}

func TestWriteOSC52_TmuxWritesBoth(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	var buf bytes.Buffer
	if err := WriteOSC52(&buf, "x"); err != nil {
		t.Fatalf("WriteOSC52 failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "\x1b]52;") || !strings.Contains(buf.String(), "\x1bPtmux;") {
		t.Fatalf("unexpected sequence %q", buf.String())
	}
}
