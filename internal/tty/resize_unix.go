//go:build !windows

package tty

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchResize calls NotifyResize on every SIGWINCH until ctx is done.
func (h *Host) WatchResize(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				h.NotifyResize()
			}
		}
	}()
}
