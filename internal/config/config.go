// Package config defines the tracker configuration and its loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the intent dispatch queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the number of remembered intent ids.
	DedupeSize int `koanf:"dedupe_size"`

	// StorageBackend is one of sqlite, file or memory.
	StorageBackend string `koanf:"storage_backend"`

	// StoragePath is the SQLite database file or the directory for the file backend.
	StoragePath string `koanf:"storage_path"`

	// StorageKey names the single key holding every workout.
	StorageKey string `koanf:"storage_key"`

	// RemovalDelayMS is the grace period before a removed list entry disappears.
	RemovalDelayMS int `koanf:"removal_delay_ms"`

	// MapZoom is the zoom level used when panning to a workout.
	MapZoom int `koanf:"map_zoom"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		QueueSize:      1024,
		DedupeSize:     10_000,
		StorageBackend: BackendSQLite,
		StoragePath:    "mapty.db",
		StorageKey:     "workouts",
		RemovalDelayMS: 200,
		MapZoom:        13,
	}
}

// RemovalDelay returns RemovalDelayMS as a duration.
func (c *Config) RemovalDelay() time.Duration {
	return time.Duration(c.RemovalDelayMS) * time.Millisecond
}

// Validate checks the fields that would otherwise fail late.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.StorageKey == "":
		return fmt.Errorf("%w: storage_key must not be empty", ErrInvalidConfig)
	case c.RemovalDelayMS < 0:
		return fmt.Errorf("%w: removal_delay_ms must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.StorageBackend) {
	case BackendSQLite, BackendFile:
		if c.StoragePath == "" {
			return fmt.Errorf("%w: storage_path is required for the %s backend", ErrInvalidConfig, c.StorageBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage_backend %q", ErrInvalidConfig, c.StorageBackend)
	}
	return nil
}
