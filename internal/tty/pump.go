package tty

import (
	"context"
	"errors"
	"io"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

// ErrDetached is returned by Pump when the user presses the detach chord.
var ErrDetached = errors.New("detached")

const readBufferSize = 4096

// Target receives decoded input. *controller.Controller satisfies it.
type Target interface {
	HandleKey(key terminal.KeyInput) bool
	Input(p []byte)
}

// Pump reads r until it fails, ctx is done or the detach chord arrives,
// dispatching keys to target and focus reports to the host's pointer
// listeners. A read blocked in r outlives a cancelled Pump.
func (h *Host) Pump(ctx context.Context, r io.Reader, target Target) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var dec Decoder
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case p := <-chunks:
			for _, in := range dec.Decode(p) {
				switch in.Kind {
				case InputKey:
					target.HandleKey(in.Key)
				case InputRaw:
					target.Input(in.Raw)
				case InputFocus:
					h.NotifyPointerDown()
				case InputDetach:
					return ErrDetached
				}
			}
		}
	}
}
