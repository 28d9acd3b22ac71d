package terminal

import (
	"reflect"
	"strings"
	"testing"
)

type recordingEmulator struct {
	calls   []string
	cols    int
	rows    int
	buffer  strings.Builder
	scrollY int
}

func (r *recordingEmulator) Open(Container) {}
func (r *recordingEmulator) OnData(func([]byte)) {}
func (r *recordingEmulator) SendKey(KeyInput) error {
	return nil
}
func (r *recordingEmulator) Paste(string) error { return nil }
func (r *recordingEmulator) Focus() {}
func (r *recordingEmulator) Select(Selection) {}
func (r *recordingEmulator) HasSelection() bool { return false }
func (r *recordingEmulator) SelectionText() string {
	return ""
}
func (r *recordingEmulator) Close() error { return nil }

func (r *recordingEmulator) Feed(p []byte) {
	r.calls = append(r.calls, "feed")
	r.buffer.Write(p)
}

func (r *recordingEmulator) Resize(cols, rows int) error {
	r.calls = append(r.calls, "resize")
	r.cols, r.rows = cols, rows
	return nil
}

func (r *recordingEmulator) Size() (int, int) { return r.cols, r.rows }

func (r *recordingEmulator) Reset() {
	r.calls = append(r.calls, "reset")
	r.buffer.Reset()
	r.scrollY = 0
}

func (r *recordingEmulator) ScrollTo(y int) {
	r.calls = append(r.calls, "scroll")
	r.scrollY = y
}

func (r *recordingEmulator) ScrollY() int { return r.scrollY }
func (r *recordingEmulator) Serialize() string { return r.buffer.String() }

func TestRestore_Order(t *testing.T) {
	emu := &recordingEmulator{cols: 80, rows: 24}
	snap := Snapshot{Buffer: "$ ls\r\n", Rows: 10, Cols: 40, ScrollY: 3}

	if err := Restore(emu, snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	want := []string{"resize", "reset", "feed", "scroll"}
	if !reflect.DeepEqual(emu.calls, want) {
		t.Fatalf("calls = %v, want %v", emu.calls, want)
	}
	if emu.cols != 40 || emu.rows != 10 {
		t.Fatalf("size = %dx%d, want 40x10", emu.cols, emu.rows)
	}
}

type syncingEmulator struct {
	*recordingEmulator
}

func (s syncingEmulator) Sync() {
	s.calls = append(s.calls, "sync")
}

func TestRestore_SyncsBeforeScroll(t *testing.T) {
	emu := syncingEmulator{&recordingEmulator{cols: 80, rows: 24}}
	snap := Snapshot{Buffer: "$ ls\r\n", Rows: 10, Cols: 40, ScrollY: 3}

	if err := Restore(emu, snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	want := []string{"resize", "reset", "feed", "sync", "scroll"}
	if !reflect.DeepEqual(emu.calls, want) {
		t.Fatalf("calls = %v, want %v", emu.calls, want)
	}
}

func TestRestore_SkipsMissingFields(t *testing.T) {
	emu := &recordingEmulator{cols: 80, rows: 24}
	if err := Restore(emu, Snapshot{Buffer: "x"}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	want := []string{"reset", "feed"}
	if !reflect.DeepEqual(emu.calls, want) {
		t.Fatalf("calls = %v, want %v", emu.calls, want)
	}
}

func TestCaptureRestore_RoundTrip(t *testing.T) {
	src := &recordingEmulator{cols: 100, rows: 30}
	src.Feed([]byte("line one\r\nline two"))
	src.ScrollTo(5)

	snap := Capture(src)
	if snap.Cols != 100 || snap.Rows != 30 || snap.ScrollY != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}

	dst := &recordingEmulator{cols: 80, rows: 24}
	dst.Feed([]byte("default prompt $ "))
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if dst.Serialize() != src.Serialize() {
		t.Fatalf("restored buffer = %q, want %q", dst.Serialize(), src.Serialize())
	}
	if got := Capture(dst); got != snap {
		t.Fatalf("restored snapshot = %+v, want %+v", got, snap)
	}
}

func TestSerializeScreen(t *testing.T) {
	lines := []string{"$ echo hi   ", "hi", "$ ", "", "   "}
	got := SerializeScreen(lines, Cursor{X: 2, Y: 2})
	want := "$ echo hi\r\nhi\r\n$\x1b[3;3H"
	if got != want {
		t.Fatalf("SerializeScreen = %q, want %q", got, want)
	}
}

func TestSerializeScreen_Blank(t *testing.T) {
	got := SerializeScreen([]string{"  ", ""}, Cursor{})
	if got != "\x1b[1;1H" {
		t.Fatalf("SerializeScreen = %q", got)
	}
}
