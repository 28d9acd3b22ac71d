package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

var (
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrStorageWrite         = errors.New("failed to write snapshot")
	ErrInvalidPTYID         = errors.New("invalid pty id")
	ErrSnapshotFileTooLarge = errors.New("snapshot file too large")
	ErrSymlinkNotAllowed    = errors.New("symlinks not allowed for snapshot files")
)

const maxSnapshotFileSize = 16 * 1024 * 1024

var ptyIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store persists terminal snapshots across runs, keyed by PTY id.
type Store interface {
	Save(rec *Record) error
	Load(ptyID string) (*Record, error)
	Delete(ptyID string) error
	List() ([]*Record, error)
}

// Record is a stored snapshot together with the session it belongs to.
type Record struct {
	PTYID     string
	ServerURL string
	Directory string
	UpdatedAt time.Time
	Snapshot  terminal.Snapshot
}

type recordData struct {
	PTYID     string            `json:"pty_id"`
	ServerURL string            `json:"server_url,omitempty"`
	Directory string            `json:"directory,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Snapshot  terminal.Snapshot `json:"snapshot"`
}

type ListError struct {
	Errors []error
}

func (e *ListError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("failed to load %d snapshots: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ListError) Unwrap() []error {
	return e.Errors
}

func validatePTYID(id string) error {
	if !ptyIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPTYID, id)
	}
	return nil
}

// JSONFileStorage keeps one JSON file per PTY under <baseDir>/snapshots.
type JSONFileStorage struct {
	baseDir string
	mu      sync.RWMutex
}

func NewJSONFileStorage(baseDir string) (*JSONFileStorage, error) {
	dir := filepath.Join(baseDir, "snapshots")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	if info, err := os.Stat(dir); err == nil && info.Mode().Perm()&0o077 != 0 {
		_ = os.Chmod(dir, 0o700)
	}
	return &JSONFileStorage{baseDir: baseDir}, nil
}

func (s *JSONFileStorage) dir() string {
	return filepath.Join(s.baseDir, "snapshots")
}

func (s *JSONFileStorage) path(id string) string {
	return filepath.Join(s.dir(), id+".json")
}

func (s *JSONFileStorage) Save(rec *Record) error {
	if rec == nil {
		return errors.New("record is required")
	}
	if err := validatePTYID(rec.PTYID); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(recordData(*rec), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if len(data) > maxSnapshotFileSize {
		return fmt.Errorf("%w: %s (%d bytes)", ErrSnapshotFileTooLarge, rec.PTYID, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.dir(), rec.PTYID, data)
}

// writeFileAtomic replaces <dir>/<id>.json via a synced temp file and
// rename, then syncs the directory.
func writeFileAtomic(dir, id string, data []byte) error {
	f, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	tmpName := f.Name()
	_ = os.Chmod(tmpName, 0o600)

	defer func() {
		if f != nil {
			f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Close(); err != nil {
		f = nil
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	f = nil

	if err := os.Rename(tmpName, filepath.Join(dir, id+".json")); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	df, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *JSONFileStorage) Load(id string) (*Record, error) {
	if err := validatePTYID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadUnlocked(id)
}

func (s *JSONFileStorage) Delete(id string) error {
	if err := validatePTYID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns every readable record. Records that fail to load are
// reported together in a *ListError alongside the ones that loaded.
func (s *JSONFileStorage) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if validatePTYID(id) != nil {
			continue
		}
		rec, err := s.loadUnlocked(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", id, err))
			continue
		}
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return records, &ListError{Errors: errs}
	}
	return records, nil
}

func (s *JSONFileStorage) loadUnlocked(id string) (*Record, error) {
	filePath := s.path(id)
	info, err := os.Lstat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymlinkNotAllowed, id)
	}
	if info.Size() > maxSnapshotFileSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrSnapshotFileTooLarge, id, info.Size())
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var rd recordData
	if err := json.Unmarshal(data, &rd); err != nil {
		return nil, err
	}
	if rd.PTYID != id {
		return nil, fmt.Errorf("%w: file %s holds %q", ErrInvalidPTYID, id, rd.PTYID)
	}
	rec := Record(rd)
	return &rec, nil
}
