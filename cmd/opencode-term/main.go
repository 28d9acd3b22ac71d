package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricochet1k/opencode-term/internal/config"
	"github.com/ricochet1k/opencode-term/internal/storage"
	"github.com/ricochet1k/opencode-term/internal/transport"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	serverURL  string
	directory  string
	logLevel   string

	cfg config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "opencode-term",
		Short:         "Attach the local terminal to OpenCode PTY sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: user config dir)")
	flags.StringVar(&a.serverURL, "server", "", "OpenCode server URL")
	flags.StringVar(&a.directory, "directory", "", "working directory PTYs are scoped to")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		attachCmd(a),
		createCmd(a),
		listCmd(a),
		removeCmd(a),
		healthCmd(a),
	)
	return cmd
}

func (a *app) load() error {
	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
	}
	if a.directory != "" {
		cfg.Server.Directory = a.directory
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if _, err := cfg.LogLevel(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) client() *transport.Client {
	return transport.NewClient(a.cfg.ServerURL(), transport.ClientOptions{})
}

func (a *app) endpoint(ptyID string) transport.Endpoint {
	return transport.Endpoint{
		ServerURL: a.cfg.ServerURL(),
		PTYID:     ptyID,
		Directory: a.cfg.Directory(),
	}
}

func (a *app) store() (*storage.JSONFileStorage, error) {
	dir, err := a.cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	return storage.NewJSONFileStorage(dir)
}
