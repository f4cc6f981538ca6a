// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package main is the entry point for the Cartlift batch pipeline.
//
// Cartlift analyzes retail clickstream exports: it groups raw events into
// per-visitor sessions, scores which item properties associate with
// add-to-cart behavior, flags anomalous visitors, and re-scores with the
// flagged visitors excluded. Each invocation is a single batch run that
// writes one JSON report.
//
// # Pipeline Stages
//
// A run executes the following stages in order:
//
//  1. Ingest: Load the events, item properties, and category tree CSVs
//     through an in-memory DuckDB instance
//  2. Validate: Reject empty tables and malformed category forests
//  3. Sessions: Split each visitor's events on inactivity gaps
//  4. Associate + Detect: Score property/value lift and flag anomalous
//     visitors, concurrently
//  5. Cleaned re-score: Score again with flagged visitors excluded
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SESSION_GAP_MINUTES, MIN_SUPPORT, ...)
//   - Config file (CONFIG_PATH or /etc/cartlift/config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the run context. Stages observe cancellation
// at batch boundaries; a cancelled run exits non-zero without a report.
//
// # Exit Status
//
// Exit status is non-zero when configuration, ingestion, or any pipeline
// stage fails. A stage failure after the validate stage still writes the
// partial report before exiting.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/cartlift/internal/config"
	"github.com/tomtom215/cartlift/internal/ingest"
	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/pipeline"
	"github.com/tomtom215/cartlift/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("events", cfg.Input.EventsPath).
		Str("properties", cfg.Input.ItemPropertiesPath).
		Str("categories", cfg.Input.CategoryTreePath).
		Msg("Starting Cartlift pipeline")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := ingest.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open ingestion database")
	}

	input, _, err := loader.Load(ctx, cfg.Input)
	closeLoader(loader)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load input tables")
	}

	runner := pipeline.NewRunner(pipeline.Config{
		SessionGap:     cfg.Pipeline.SessionGap(),
		MinSupport:     int64(cfg.Pipeline.MinSupport),
		ZThreshold:     cfg.Pipeline.AnomalyZThreshold,
		NumericBuckets: cfg.Pipeline.NumericBucketCount,
		Workers:        cfg.Pipeline.Workers,
	})

	rep, runErr := runner.Run(ctx, input)
	if rep != nil {
		if err := writeReport(rep, cfg.Output); err != nil {
			logging.Error().Err(err).Msg("Failed to write report")
			os.Exit(1)
		}
	}
	if runErr != nil {
		// Run already logged the stage failure with its stage name.
		os.Exit(1)
	}
}

// writeReport emits the report to the configured path, or stdout when no
// path is set.
func writeReport(rep *report.Report, out config.OutputConfig) error {
	if out.Path == "" {
		return rep.WriteJSON(os.Stdout, out.Pretty)
	}

	f, err := os.Create(out.Path)
	if err != nil {
		return err
	}
	if err := rep.WriteJSON(f, out.Pretty); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func closeLoader(loader *ingest.Loader) {
	if err := loader.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close ingestion database")
	}
}
