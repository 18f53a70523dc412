// Package config loads the booth configuration from the environment
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RootPath     string        `env:"PB_ROOT_PATH" envDefault:"."`
	Addr         string        `env:"PB_ADDR" envDefault:"0.0.0.0:8080"`
	Product      string        `env:"PB_PRODUCT" envDefault:"yeobooth"`
	FramesDir    string        `env:"PB_FRAMES_DIR"`
	S3Bucket     string        `env:"PB_S3_BUCKET"`
	AWSProfile   string        `env:"PB_AWS_PROFILE"`
	PreviewQuiet time.Duration `env:"PB_PREVIEW_QUIET" envDefault:"300ms"`
	IdleTimeout  time.Duration `env:"PB_IDLE_TIMEOUT" envDefault:"10m"`
	FeedWait     time.Duration `env:"PB_FEED_WAIT" envDefault:"5s"`
	CornerRadius int           `env:"PB_CORNER_RADIUS" envDefault:"0"`
	LogLevel     string        `env:"PB_LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Product == "" {
		return nil, fmt.Errorf("PB_PRODUCT must not be empty")
	}
	if cfg.CornerRadius < 0 {
		return nil, fmt.Errorf("PB_CORNER_RADIUS must not be negative, got %d", cfg.CornerRadius)
	}
	if cfg.PreviewQuiet < 0 {
		return nil, fmt.Errorf("PB_PREVIEW_QUIET must not be negative, got %s", cfg.PreviewQuiet)
	}
	return &cfg, nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.RootPath, "photobooth.db")
}

func (c *Config) ExportsDir() string {
	return filepath.Join(c.RootPath, "exports")
}

// FramesPath is the directory holding frame artwork that overrides the
// bundled frames. It is also the target of the S3 sync.
func (c *Config) FramesPath() string {
	if c.FramesDir != "" {
		return c.FramesDir
	}
	return filepath.Join(c.RootPath, "frames")
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
