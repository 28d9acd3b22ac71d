// Command ptyd serves the OpenCode PTY API from local shells.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricochet1k/opencode-term/internal/config"
	"github.com/ricochet1k/opencode-term/internal/devserver"
)

const (
	version         = "dev"
	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, addr, shell, logLevel string
	cmd := &cobra.Command{
		Use:           "ptyd",
		Short:         "Run a local PTY server for opencode-term",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				configPath = p
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.DevServer.Addr = addr
			}
			if shell != "" {
				cfg.DevServer.Shell = shell
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: user config dir)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&shell, "shell", "", "program started in new PTYs")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, level)

	mgr := devserver.NewManager(cfg.Shell(), logger)
	defer mgr.Close()

	srv := &http.Server{
		Addr:              cfg.DevServerAddr(),
		Handler:           devserver.NewServer(mgr, version, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ptyd listening", "addr", srv.Addr, "shell", cfg.Shell())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("ptyd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
