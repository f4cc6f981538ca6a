// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package config loads and validates Cartlift configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//   - Environment variables (see envTransformFunc for the mapping)
//   - Optional YAML config file (CONFIG_PATH or the default search list)
//   - Built-in defaults
package config

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned (wrapped) for any configuration validation
// failure. Validation failures are fatal at startup; a run never starts
// with out-of-range thresholds.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for a pipeline run.
type Config struct {
	Pipeline PipelineConfig `koanf:"pipeline"`
	Input    InputConfig    `koanf:"input"`
	Output   OutputConfig   `koanf:"output"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PipelineConfig holds the analytical thresholds.
type PipelineConfig struct {
	// SessionGapMinutes is the inactivity gap that starts a new session.
	SessionGapMinutes int `koanf:"session_gap_minutes" validate:"gt=0"`

	// MinSupport is the minimum cart-context count for a (property, value)
	// pair to appear in the report.
	MinSupport int `koanf:"min_support" validate:"gt=0"`

	// AnomalyZThreshold is the |z| above which a visitor feature is flagged.
	AnomalyZThreshold float64 `koanf:"anomaly_z_threshold" validate:"gt=0"`

	// NumericBucketCount is the number of quantile buckets for numeric
	// property values.
	NumericBucketCount int `koanf:"numeric_bucket_count" validate:"gte=2"`

	// Workers is the visitor-partition worker count. 0 = runtime.NumCPU().
	Workers int `koanf:"workers" validate:"gte=0"`
}

// SessionGap returns the session gap as a duration.
func (p PipelineConfig) SessionGap() time.Duration {
	return time.Duration(p.SessionGapMinutes) * time.Minute
}

// InputConfig names the three source tables.
type InputConfig struct {
	EventsPath         string `koanf:"events_path" validate:"required"`
	ItemPropertiesPath string `koanf:"item_properties_path" validate:"required"`
	CategoryTreePath   string `koanf:"category_tree_path" validate:"required"`
}

// OutputConfig controls report emission.
type OutputConfig struct {
	// Path is the report destination. Empty writes to stdout.
	Path string `koanf:"path"`

	// Pretty enables indented JSON output.
	Pretty bool `koanf:"pretty"`
}

// DatabaseConfig tunes the in-memory DuckDB used for CSV ingestion.
type DatabaseConfig struct {
	MaxMemory string `koanf:"max_memory"`

	// Threads for DuckDB. 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SessionGapMinutes:  30,
			MinSupport:         5,
			AnomalyZThreshold:  3.0,
			NumericBucketCount: 10,
			Workers:            0, // 0 = use runtime.NumCPU()
		},
		Input: InputConfig{
			EventsPath:         "data/events.csv",
			ItemPropertiesPath: "data/item_properties.csv",
			CategoryTreePath:   "data/category_tree.csv",
		},
		Output: OutputConfig{
			Path:   "",
			Pretty: true,
		},
		Database: DatabaseConfig{
			MaxMemory: "2GB",
			Threads:   0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
