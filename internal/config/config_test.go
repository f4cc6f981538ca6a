// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Pipeline.SessionGapMinutes != 30 {
		t.Errorf("SessionGapMinutes = %d, want 30", cfg.Pipeline.SessionGapMinutes)
	}
	if cfg.Pipeline.MinSupport != 5 {
		t.Errorf("MinSupport = %d, want 5", cfg.Pipeline.MinSupport)
	}
	if cfg.Pipeline.AnomalyZThreshold != 3.0 {
		t.Errorf("AnomalyZThreshold = %v, want 3.0", cfg.Pipeline.AnomalyZThreshold)
	}
	if cfg.Pipeline.NumericBucketCount != 10 {
		t.Errorf("NumericBucketCount = %d, want 10", cfg.Pipeline.NumericBucketCount)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestSessionGapDuration(t *testing.T) {
	p := PipelineConfig{SessionGapMinutes: 45}
	if got := p.SessionGap(); got != 45*time.Minute {
		t.Errorf("SessionGap() = %v, want 45m", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero session gap rejected",
			mutate:  func(c *Config) { c.Pipeline.SessionGapMinutes = 0 },
			wantErr: true,
		},
		{
			name:    "negative session gap rejected",
			mutate:  func(c *Config) { c.Pipeline.SessionGapMinutes = -5 },
			wantErr: true,
		},
		{
			name:    "zero min support rejected",
			mutate:  func(c *Config) { c.Pipeline.MinSupport = 0 },
			wantErr: true,
		},
		{
			name:    "negative z threshold rejected",
			mutate:  func(c *Config) { c.Pipeline.AnomalyZThreshold = -1 },
			wantErr: true,
		},
		{
			name:    "single numeric bucket rejected",
			mutate:  func(c *Config) { c.Pipeline.NumericBucketCount = 1 },
			wantErr: true,
		},
		{
			name:    "negative worker count rejected",
			mutate:  func(c *Config) { c.Pipeline.Workers = -1 },
			wantErr: true,
		},
		{
			name:   "zero workers means NumCPU",
			mutate: func(c *Config) { c.Pipeline.Workers = 0 },
		},
		{
			name:    "missing events path rejected",
			mutate:  func(c *Config) { c.Input.EventsPath = "" },
			wantErr: true,
		},
		{
			name: "duplicate input paths rejected",
			mutate: func(c *Config) {
				c.Input.EventsPath = "same.csv"
				c.Input.ItemPropertiesPath = "same.csv"
			},
			wantErr: true,
		},
		{
			name:    "bogus log level rejected",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "bogus log format rejected",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SESSION_GAP_MINUTES", "15")
	t.Setenv("MIN_SUPPORT", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Pipeline.SessionGapMinutes != 15 {
		t.Errorf("SessionGapMinutes = %d, want 15 from env", cfg.Pipeline.SessionGapMinutes)
	}
	if cfg.Pipeline.MinSupport != 2 {
		t.Errorf("MinSupport = %d, want 2 from env", cfg.Pipeline.MinSupport)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
	// Untouched settings keep their defaults.
	if cfg.Pipeline.NumericBucketCount != 10 {
		t.Errorf("NumericBucketCount = %d, want default 10", cfg.Pipeline.NumericBucketCount)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"SESSION_GAP_MINUTES", "pipeline.session_gap_minutes"},
		{"EVENTS_PATH", "input.events_path"},
		{"OUTPUT_PRETTY", "output.pretty"},
		{"DUCKDB_MAX_MEMORY", "database.max_memory"},
		{"LOG_FORMAT", "logging.format"},
		{"PATH", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
