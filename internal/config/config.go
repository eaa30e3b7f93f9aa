// Package config loads engine tuning from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration.
type Config struct {
	// LogLevel is debug, info, warn, or error.
	LogLevel string `toml:"log_level"`

	Cache    CacheConfig    `toml:"cache"`
	Session  SessionConfig  `toml:"session"`
	Feedback FeedbackConfig `toml:"feedback"`
}

// CacheConfig tunes the spatial query cache.
type CacheConfig struct {
	// MaxEntries is the cache ceiling; the oldest half is evicted when
	// it is exceeded.
	MaxEntries int `toml:"max_entries"`
}

// SessionConfig tunes the drag session.
type SessionConfig struct {
	// CancelResetMS is how long a cancelled session lingers before
	// auto-resetting to idle.
	CancelResetMS int `toml:"cancel_reset_ms"`
}

// FeedbackConfig tunes the feedback coordinator.
type FeedbackConfig struct {
	// FPSLimit caps ghost position updates per second.
	FPSLimit int `toml:"fps_limit"`

	// InvalidLifetimeMS is how long invalid markers stay on screen.
	InvalidLifetimeMS int `toml:"invalid_lifetime_ms"`

	// FrameBudgetMS is the per-update latency warning threshold.
	FrameBudgetMS float64 `toml:"frame_budget_ms"`

	// GhostOffsetX and GhostOffsetY displace the ghost from the pointer.
	GhostOffsetX float64 `toml:"ghost_offset_x"`
	GhostOffsetY float64 `toml:"ghost_offset_y"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Cache:    CacheConfig{MaxEntries: 512},
		Session:  SessionConfig{CancelResetMS: 300},
		Feedback: FeedbackConfig{
			FPSLimit:          60,
			InvalidLifetimeMS: 1500,
			FrameBudgetMS:     1000.0 / 60,
			GhostOffsetX:      12,
			GhostOffsetY:      12,
		},
	}
}

// Load reads configuration from path, applying defaults for anything the
// file leaves unset. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps nonsense values back to defaults.
func (c *Config) normalize() {
	def := Default()
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Session.CancelResetMS <= 0 {
		c.Session.CancelResetMS = def.Session.CancelResetMS
	}
	if c.Feedback.FPSLimit <= 0 {
		c.Feedback.FPSLimit = def.Feedback.FPSLimit
	}
	if c.Feedback.InvalidLifetimeMS <= 0 {
		c.Feedback.InvalidLifetimeMS = def.Feedback.InvalidLifetimeMS
	}
	if c.Feedback.FrameBudgetMS <= 0 {
		c.Feedback.FrameBudgetMS = def.Feedback.FrameBudgetMS
	}
}

// CancelResetDelay returns the session reset delay as a duration.
func (c Config) CancelResetDelay() time.Duration {
	return time.Duration(c.Session.CancelResetMS) * time.Millisecond
}

// InvalidLifetime returns the invalid marker lifetime as a duration.
func (c Config) InvalidLifetime() time.Duration {
	return time.Duration(c.Feedback.InvalidLifetimeMS) * time.Millisecond
}

// FrameBudget returns the frame budget as a duration.
func (c Config) FrameBudget() time.Duration {
	return time.Duration(c.Feedback.FrameBudgetMS * float64(time.Millisecond))
}

// ParseLevel maps a config log level to a charmbracelet/log level.
// Unknown strings map to info.
func ParseLevel(s string) log.Level {
	switch s {
	case "debug", "DEBUG":
		return log.DebugLevel
	case "warn", "WARN", "warning":
		return log.WarnLevel
	case "error", "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
