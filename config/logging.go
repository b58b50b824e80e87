package config

import (
	"fmt"

	"github.com/kilianp07/chpdispatch/core/dispatch/logging"
)

const (
	BackendJSONL         = "jsonl"
	BackendJSONLRotating = "jsonl_rotating"
	BackendSQLite        = "sqlite"
)

// LoggingConfig defines settings for run log storage and rotation.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl", "jsonl_rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" {
		c.Path = "dispatch_runs.jsonl"
	}
	if c.Backend == BackendJSONLRotating && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case BackendJSONL, BackendJSONLRotating, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Open creates the configured run store.
func (c LoggingConfig) Open() (logging.RunStore, error) {
	switch c.Backend {
	case BackendSQLite:
		return logging.NewSQLiteStore(c.Path)
	case BackendJSONLRotating:
		return logging.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case BackendJSONL:
		return logging.NewJSONLStore(c.Path)
	default:
		return nil, fmt.Errorf("unknown backend %s", c.Backend)
	}
}
