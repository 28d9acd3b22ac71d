package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/ricochet1k/opencode-term/internal/terminal"
)

const (
	appDirName = "opencode-term"

	defaultServerURL     = "http://127.0.0.1:4096"
	defaultDevServerAddr = "127.0.0.1:4096"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Theme     terminal.Theme  `toml:"theme"`
	Terminal  TerminalConfig  `toml:"terminal"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	DevServer DevServerConfig `toml:"devserver"`
}

type ServerConfig struct {
	URL       string `toml:"url"`
	Directory string `toml:"directory"`
}

type TerminalConfig struct {
	// Layout is "mac", "linux" or "auto".
	Layout          string `toml:"layout"`
	CellWidth       int    `toml:"cell_width"`
	CellHeight      int    `toml:"cell_height"`
	ScrollbackBytes int    `toml:"scrollback_bytes"`
}

type StorageConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type DevServerConfig struct {
	Addr  string `toml:"addr"`
	Shell string `toml:"shell"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{URL: defaultServerURL},
		Theme: terminal.Theme{
			Background: "#1e1e2e",
			Foreground: "#cdd6f4",
			Cursor:     "#f5e0dc",
		},
		Terminal: TerminalConfig{
			Layout:          "auto",
			CellWidth:       1,
			CellHeight:      1,
			ScrollbackBytes: terminal.DefaultScrollbackBytes,
		},
		Logging:   LoggingConfig{Level: "info"},
		DevServer: DevServerConfig{Addr: defaultDevServerAddr},
	}
}

// Dir is the per-user directory holding the config file and stored state.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) ServerURL() string {
	u := strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if u == "" {
		return defaultServerURL
	}
	return u
}

// Directory is the working directory PTYs are scoped to, defaulting to the
// process working directory.
func (c Config) Directory() string {
	if dir := strings.TrimSpace(c.Server.Directory); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func (c Config) StorageDir() (string, error) {
	if dir := strings.TrimSpace(c.Storage.Dir); dir != "" {
		return dir, nil
	}
	return Dir()
}

func (c Config) DevServerAddr() string {
	if addr := strings.TrimSpace(c.DevServer.Addr); addr != "" {
		return addr
	}
	return defaultDevServerAddr
}

// Shell is the program the dev server runs in new PTYs.
func (c Config) Shell() string {
	if sh := strings.TrimSpace(c.DevServer.Shell); sh != "" {
		return sh
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func (c Config) LogLevel() (slog.Level, error) {
	return ParseLevel(c.Logging.Level)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds the text logger used by the commands.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
