// Package config resolves the serving root and the optional coiserve.yaml overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional override file looked up next to the executable.
const FileName = "coiserve.yaml"

// DefaultPort is used when coiserve.yaml sets no port or an invalid one.
const DefaultPort = 8000

type Config struct {
	Host            string        `yaml:"host"`            // Bind host, empty for all interfaces
	Port            int           `yaml:"port"`            // Listen port (default: 8000, 0 picks a free port)
	Root            string        `yaml:"root"`            // Serving root, relative paths resolve against the executable dir
	ListDirectories bool          `yaml:"listDirectories"` // Render listings for directories without index.html (default: true)
	Compress        bool          `yaml:"compress"`        // Gzip responses for clients that accept it (default: false)
	LogRequests     bool          `yaml:"logRequests"`     // One log line per request (default: true)
	LogLevel        string        `yaml:"logLevel"`        // debug, info, warn or error (default: info)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // Graceful shutdown budget (default: 5s)
}

// Default returns the configuration used when no override file exists.
func Default(root string) *Config {
	return &Config{
		Port:            DefaultPort,
		Root:            root,
		ListDirectories: true,
		LogRequests:     true,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads dir/coiserve.yaml on top of the defaults for dir.
// A missing file is not an error; a malformed one is.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid config directory: %w", err)
	}
	cfg := Default(absDir)

	data, err := os.ReadFile(filepath.Join(absDir, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	if cfg.Root == "" {
		cfg.Root = absDir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(absDir, cfg.Root)
	}
	cfg.Root = filepath.Clean(cfg.Root)

	cfg.validate()
	return cfg, nil
}

// ExecutableDir returns the directory holding the running binary, with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// validate clamps values into usable ranges
func (c *Config) validate() {
	if c.Port < 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.ShutdownTimeout < 1*time.Second {
		c.ShutdownTimeout = 1 * time.Second
	}
	if c.ShutdownTimeout > 60*time.Second {
		c.ShutdownTimeout = 60 * time.Second
	}
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		c.LogLevel = "info"
	}
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	if lvl, ok := levels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Addr is the listen address passed to net.Listen.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BrowseURL is the address printed for the operator.
func BrowseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
