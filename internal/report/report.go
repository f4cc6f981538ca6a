// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package report assembles the pipeline run output: the raw and cleaned
// property association rankings, the visitor anomaly flags, and the run
// accounting, as a single JSON-serializable document.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartlift/internal/models"
)

// Settings echoes the thresholds a run used, for reproducibility.
type Settings struct {
	SessionGapMinutes  int     `json:"session_gap_minutes"`
	MinSupport         int64   `json:"min_support"`
	AnomalyZThreshold  float64 `json:"anomaly_z_threshold"`
	NumericBucketCount int     `json:"numeric_bucket_count"`
}

// ScoreSection is one association scoring run, raw or cleaned.
type ScoreSection struct {
	Scores                []models.PropertyAssociationScore `json:"scores"`
	TotalCartContexts     int64                             `json:"total_cart_contexts"`
	TotalViewOnlyContexts int64                             `json:"total_view_only_contexts"`
}

// SessionSummary is the session-builder accounting for the run.
type SessionSummary struct {
	Visitors      int64 `json:"visitors"`
	Sessions      int64 `json:"sessions"`
	DroppedEvents int64 `json:"dropped_events"`
}

// CategorySummary describes the validated category forest.
type CategorySummary struct {
	Categories int `json:"categories"`
	Roots      int `json:"roots"`
	MaxDepth   int `json:"max_depth"`
}

// Report is the complete output of one pipeline run. On a stage failure
// the sections filled by already-completed stages are still populated;
// the rest are nil.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Settings    Settings  `json:"settings"`

	Sessions   *SessionSummary  `json:"sessions,omitempty"`
	Categories *CategorySummary `json:"categories,omitempty"`

	// Raw is the association ranking over all sessions; Cleaned excludes
	// flagged visitors' sessions so the effect of anomaly filtering on the
	// ranking can be compared.
	Raw     *ScoreSection `json:"raw,omitempty"`
	Cleaned *ScoreSection `json:"cleaned,omitempty"`

	Flags           []models.VisitorAnomalyFlag `json:"flags,omitempty"`
	FlaggedVisitors int                         `json:"flagged_visitors"`
}

// WriteJSON encodes the report to w.
func (r *Report) WriteJSON(w io.Writer, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
