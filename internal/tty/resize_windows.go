//go:build windows

package tty

import (
	"context"
	"time"
)

const resizePollInterval = 500 * time.Millisecond

// WatchResize polls the console size until ctx is done.
func (h *Host) WatchResize(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(resizePollInterval)
		defer ticker.Stop()
		cols, rows := h.Bounds()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, r := h.Bounds()
				if c != cols || r != rows {
					cols, rows = c, r
					h.NotifyResize()
				}
			}
		}
	}()
}
