package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSecurity_PathTraversal(t *testing.T) {
	store, _ := newTestStore(t)

	traversalIDs := []string{
		"../outside",
		"sub/../../outside",
		"../../etc/passwd",
		"pty;rm -rf /",
		"",
	}

	for _, id := range traversalIDs {
		if err := store.Save(&Record{PTYID: id}); !errors.Is(err, ErrInvalidPTYID) {
			t.Errorf("Save(%q): expected ErrInvalidPTYID, got %v", id, err)
		}
		if _, err := store.Load(id); !errors.Is(err, ErrInvalidPTYID) {
			t.Errorf("Load(%q): expected ErrInvalidPTYID, got %v", id, err)
		}
		if err := store.Delete(id); !errors.Is(err, ErrInvalidPTYID) {
			t.Errorf("Delete(%q): expected ErrInvalidPTYID, got %v", id, err)
		}
	}
}

func TestSecurity_FilePermissions(t *testing.T) {
	store, dir := newTestStore(t)
	snapDir := filepath.Join(dir, "snapshots")

	info, err := os.Stat(snapDir)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected directory permissions 0700, got %o", info.Mode().Perm())
	}

	if err := store.Save(&Record{PTYID: "secure-perm"}); err != nil {
		t.Fatal(err)
	}
	info, err = os.Stat(filepath.Join(snapDir, "secure-perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected file permissions 0600, got %o", info.Mode().Perm())
	}
}

func TestSecurity_SymlinkCheck(t *testing.T) {
	store, dir := newTestStore(t)

	target := filepath.Join(dir, "target.json")
	_ = os.WriteFile(target, []byte(`{"pty_id":"link"}`), 0o644)
	if err := os.Symlink(target, filepath.Join(dir, "snapshots", "link.json")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := store.Load("link"); !errors.Is(err, ErrSymlinkNotAllowed) {
		t.Fatalf("expected ErrSymlinkNotAllowed, got %v", err)
	}
}

func TestSecurity_FileTooLarge(t *testing.T) {
	store, dir := newTestStore(t)

	path := filepath.Join(dir, "snapshots", "huge.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(maxSnapshotFileSize + 1); err != nil {
		f.Close()
		t.Fatal(err)
	}
	f.Close()

	if _, err := store.Load("huge"); !errors.Is(err, ErrSnapshotFileTooLarge) {
		t.Fatalf("expected ErrSnapshotFileTooLarge, got %v", err)
	}
}
