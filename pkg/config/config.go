// Package config loads fidematch settings from defaults, an optional YAML or TOML file,
// and FIDEMATCH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/fidematch/pkg/player"
	"github.com/codeGROOVE-dev/fidematch/pkg/roster"
)

// Sentinel error kinds for this package.
var (
	ErrInvalid = errors.New("invalid config")
	ErrLoad    = errors.New("load config failed")
)

// Config holds every fidematch setting.
type Config struct {
	HomeFederation string        `koanf:"home_federation"`
	Rating         string        `koanf:"rating"`
	Policy         string        `koanf:"policy"`
	Store          StoreConfig   `koanf:"store"`
	Log            LogConfig     `koanf:"log"`
	Metrics        MetricsConfig `koanf:"metrics"`
	HTTP           HTTPConfig    `koanf:"http"`
	Concurrency    int           `koanf:"concurrency"`
	Align          bool          `koanf:"align"`
}

// StoreConfig selects the match store backend.
type StoreConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres or memory
	DSN    string `koanf:"dsn"`    // file path for sqlite
}

// HTTPConfig controls registry requests.
type HTTPConfig struct {
	BaseURL        string        `koanf:"base_url"`
	CacheDir       string        `koanf:"cache_dir"`
	Cookies        string        `koanf:"cookies"` // Cookie-header style list
	Timeout        time.Duration `koanf:"timeout"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	MinDelay       time.Duration `koanf:"min_delay"`
	NoCache        bool          `koanf:"no_cache"`
	BrowserCookies bool          `koanf:"browser_cookies"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	File string `koanf:"file"` // Prometheus textfile path; empty disables export
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HomeFederation: player.DefaultHomeFederation,
		Concurrency:    4,
		Rating:         string(player.Standard),
		Policy:         string(roster.Anchored),
		Store:          StoreConfig{Driver: "sqlite"},
		HTTP: HTTPConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 12 * time.Hour,
			MinDelay: 250 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if len(c.HomeFederation) != 3 || strings.ToUpper(c.HomeFederation) != c.HomeFederation {
		return fmt.Errorf("%w: home_federation %q must be a 3-letter upper-case code", ErrInvalid, c.HomeFederation)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalid, c.Concurrency)
	}
	if _, err := player.ParseRatingKind(c.Rating); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := roster.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres", "pgx":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalid)
	}
	if c.HTTP.MinDelay < 0 {
		return fmt.Errorf("%w: http.min_delay must not be negative", ErrInvalid)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q must be text or json", ErrInvalid, c.Log.Format)
	}
	return nil
}

// RatingKind returns the configured rating kind.
func (c *Config) RatingKind() player.RatingKind {
	k, err := player.ParseRatingKind(c.Rating)
	if err != nil {
		return player.Standard
	}
	return k
}

// SplitPolicy returns the configured column slicing policy.
func (c *Config) SplitPolicy() roster.Policy {
	p, err := roster.ParsePolicy(c.Policy)
	if err != nil {
		return roster.Anchored
	}
	return p
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
