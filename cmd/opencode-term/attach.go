package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricochet1k/opencode-term/internal/clipboard"
	"github.com/ricochet1k/opencode-term/internal/config"
	"github.com/ricochet1k/opencode-term/internal/controller"
	"github.com/ricochet1k/opencode-term/internal/storage"
	"github.com/ricochet1k/opencode-term/internal/terminal"
	"github.com/ricochet1k/opencode-term/internal/transport"
	"github.com/ricochet1k/opencode-term/internal/tty"
	"github.com/ricochet1k/opencode-term/pkg/api"
)

const logFileName = "opencode-term.log"

const attachLong = `Attach runs the PTY in this terminal until it exits or Ctrl+] detaches.
The screen is saved on exit and restored the next time the same PTY is
attached.`

func attachCmd(a *app) *cobra.Command {
	var title string
	var fresh bool
	cmd := &cobra.Command{
		Use:   "attach [pty-id]",
		Short: "Attach the local terminal to a PTY, creating one when no id is given",
		Long:  attachLong,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ptyID string
			if len(args) == 1 {
				ptyID = args[0]
			}
			return a.attach(cmd.Context(), ptyID, title, fresh)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title for a newly created PTY")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore the stored snapshot")
	return cmd
}

func (a *app) attach(ctx context.Context, ptyID, title string, fresh bool) error {
	cfg := a.cfg
	store, err := a.store()
	if err != nil {
		return err
	}
	logger, closeLog, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	bridge := transport.NewBridge(transport.ClientOptions{}, transport.DialOptions{})
	if ptyID == "" {
		info, err := bridge.Client(cfg.ServerURL()).Create(ctx, cfg.Directory(), api.CreatePTYRequest{Title: title})
		if err != nil {
			return fmt.Errorf("create pty: %w", err)
		}
		ptyID = info.ID
	}

	var restore *terminal.Snapshot
	if !fresh {
		rec, err := store.Load(ptyID)
		switch {
		case err == nil:
			restore = &rec.Snapshot
		case !errors.Is(err, storage.ErrSnapshotNotFound):
			logger.Warn("load stored snapshot", "pty", ptyID, "error", err)
		}
	}

	layout, err := controller.ParseLayout(cfg.Terminal.Layout)
	if err != nil {
		return err
	}

	host := tty.NewHost(os.Stdin, os.Stdout)
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		if err := host.Stop(); err != nil {
			logger.Warn("restore terminal", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	host.WatchResize(ctx)

	ctrl := controller.New(controller.Options{
		Transport: bridge,
		Clipboard: clipboard.CopyText,
		Fit:       terminal.NewFitAddon(cfg.Terminal.CellWidth, cfg.Terminal.CellHeight),
		Logger:    logger,
	})

	ended := make(chan controller.State, 1)
	sessionCfg := controller.Config{
		PTYID:           ptyID,
		Directory:       cfg.Directory(),
		ServerURL:       cfg.ServerURL(),
		Theme:           cfg.Theme,
		Restore:         restore,
		Layout:          layout,
		ScrollbackBytes: cfg.Terminal.ScrollbackBytes,
	}
	callbacks := controller.Callbacks{
		OnStateChange: func(s controller.State) {
			logger.Info("terminal state", "pty", ptyID, "state", s.String())
			if s.Status == controller.StatusDisconnected || s.Status == controller.StatusError {
				select {
				case ended <- s:
				default:
				}
			}
		},
		OnConnectError: func(err error) {
			logger.Error("connect to pty", "pty", ptyID, "error", err)
		},
		OnSubmit: func() {
			logger.Debug("submit", "pty", ptyID)
		},
		OnCleanup: func(snap terminal.Snapshot) {
			rec := &storage.Record{
				PTYID:     ptyID,
				ServerURL: sessionCfg.ServerURL,
				Directory: sessionCfg.Directory,
				UpdatedAt: time.Now().UTC(),
				Snapshot:  snap,
			}
			if err := store.Save(rec); err != nil {
				logger.Warn("save snapshot", "pty", ptyID, "error", err)
			}
		},
	}

	if err := ctrl.Initialize(ctx, host, sessionCfg, callbacks); err != nil {
		ctrl.Dispose()
		return err
	}

	pumpErr := make(chan error, 1)
	go func() { pumpErr <- host.Pump(ctx, os.Stdin, ctrl) }()

	var result error
	select {
	case err := <-pumpErr:
		if err != nil && !errors.Is(err, tty.ErrDetached) && !errors.Is(err, context.Canceled) {
			result = err
		}
	case s := <-ended:
		if s.Status == controller.StatusError {
			result = s.Cause
		}
	case <-ctx.Done():
	}
	ctrl.Dispose()
	return result
}

// fileLogger logs to a file in the storage directory; the terminal itself
// is owned by the session while attached.
func (a *app) fileLogger() (*slog.Logger, func(), error) {
	level, err := a.cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	dir, err := a.cfg.StorageDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return config.NewLogger(f, level), func() { _ = f.Close() }, nil
}
