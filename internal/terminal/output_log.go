package terminal

import (
	"sync"
)

const DefaultScrollbackBytes = 1024 * 1024

// OutputLog captures everything fed to an emulator in a ring buffer.
// While it has not wrapped, replaying Bytes into a fresh emulator of the
// same size reproduces screen, scrollback and cursor exactly.
type OutputLog struct {
	buffer   []byte
	size     int
	writePos int
	wrapped  bool
	mu       sync.RWMutex
}

func NewOutputLog(size int) *OutputLog {
	if size <= 0 {
		size = DefaultScrollbackBytes
	}
	return &OutputLog{
		buffer: make([]byte, size),
		size:   size,
	}
}

func (l *OutputLog) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n = len(p)
	if len(p) >= l.size {
		// Only the tail survives; keep it as a full, wrapped ring.
		copy(l.buffer, p[len(p)-l.size:])
		l.writePos = 0
		l.wrapped = true
		return n, nil
	}
	for len(p) > 0 {
		c := copy(l.buffer[l.writePos:], p)
		p = p[c:]
		l.writePos += c
		if l.writePos == l.size {
			l.writePos = 0
			l.wrapped = true
		}
	}
	return n, nil
}

// Bytes returns the captured output in write order. truncated reports
// whether older output has been overwritten.
func (l *OutputLog) Bytes() (out []byte, truncated bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.wrapped {
		return append([]byte(nil), l.buffer[:l.writePos]...), false
	}
	out = make([]byte, 0, l.size)
	out = append(out, l.buffer[l.writePos:]...)
	out = append(out, l.buffer[:l.writePos]...)
	return out, true
}

func (l *OutputLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.wrapped {
		return l.size
	}
	return l.writePos
}

func (l *OutputLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writePos = 0
	l.wrapped = false
}
