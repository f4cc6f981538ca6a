// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package pipeline orchestrates the batch run: session building, property
// association scoring, anomaly detection, and the cleaned re-score with
// flagged visitors excluded.
//
// A run is all-or-nothing with respect to cancellation and has no
// retries. On a stage failure the returned report still carries the
// outputs of every stage that completed, alongside a StageError naming
// the failing stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cartlift/internal/anomaly"
	"github.com/tomtom215/cartlift/internal/association"
	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/metrics"
	"github.com/tomtom215/cartlift/internal/models"
	"github.com/tomtom215/cartlift/internal/report"
	"github.com/tomtom215/cartlift/internal/session"
)

// Input holds the three source tables, loaded in full before the run.
type Input struct {
	Events     []models.Event
	Properties []models.ItemProperty
	Categories []models.CategoryNode
}

// Config holds the run thresholds.
type Config struct {
	// SessionGap is the session inactivity threshold.
	SessionGap time.Duration

	// MinSupport is the minimum cart-context count per scored pair.
	MinSupport int64

	// ZThreshold is the anomaly flagging threshold.
	ZThreshold float64

	// NumericBuckets is the quantile bucket count for numeric values.
	NumericBuckets int

	// Workers is the session-builder worker count. 0 = runtime.NumCPU().
	Workers int
}

// DefaultConfig returns sensible defaults matching the recognized
// configuration options.
func DefaultConfig() Config {
	return Config{
		SessionGap:     30 * time.Minute,
		MinSupport:     5,
		ZThreshold:     3.0,
		NumericBuckets: 10,
		Workers:        0,
	}
}

// Runner executes pipeline runs.
type Runner struct {
	cfg      Config
	builder  *session.Builder
	scorer   *association.Scorer
	detector *anomaly.Detector
}

// NewRunner creates a runner with the given thresholds.
func NewRunner(cfg Config) *Runner {
	if cfg.SessionGap <= 0 {
		cfg.SessionGap = 30 * time.Minute
	}
	if cfg.MinSupport < 1 {
		cfg.MinSupport = 5
	}
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = 3.0
	}
	if cfg.NumericBuckets < 2 {
		cfg.NumericBuckets = 10
	}

	return &Runner{
		cfg:      cfg,
		builder:  session.NewBuilder(session.Config{Gap: cfg.SessionGap, Workers: cfg.Workers}),
		scorer:   association.NewScorer(association.Config{MinSupport: cfg.MinSupport}),
		detector: anomaly.NewDetector(anomaly.Config{ZThreshold: cfg.ZThreshold}),
	}
}

// Run executes the full pipeline over the input tables.
//
// Stage order: validate, sessions, then associate and detect concurrently,
// then the cleaned re-score. A validate failure produces no report at all;
// later failures return the partially filled report with the error.
func (r *Runner) Run(ctx context.Context, input *Input) (*report.Report, error) {
	runID := uuid.New().String()
	logging.Info().Str("run_id", runID).Int("events", len(input.Events)).Msg("pipeline run starting")

	rep := &report.Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Settings: report.Settings{
			SessionGapMinutes:  int(r.cfg.SessionGap / time.Minute),
			MinSupport:         r.cfg.MinSupport,
			AnomalyZThreshold:  r.cfg.ZThreshold,
			NumericBucketCount: r.cfg.NumericBuckets,
		},
	}

	forest, err := r.validate(input)
	if err != nil {
		return nil, r.fail(err)
	}
	rep.Categories = &report.CategorySummary{
		Categories: forest.Size(),
		Roots:      forest.RootCount(),
		MaxDepth:   forest.MaxDepth(),
	}

	sessions, err := r.buildSessions(ctx, input.Events, rep)
	if err != nil {
		return rep, r.fail(err)
	}

	idx := association.NewPropertyIndex(input.Properties, r.cfg.NumericBuckets)

	if err := r.scoreAndDetect(ctx, sessions, idx, rep); err != nil {
		return rep, r.fail(err)
	}

	if err := r.scoreCleaned(ctx, sessions, idx, rep); err != nil {
		return rep, r.fail(err)
	}

	logging.Info().
		Str("run_id", runID).
		Int("raw_pairs", len(rep.Raw.Scores)).
		Int("cleaned_pairs", len(rep.Cleaned.Scores)).
		Int("flags", len(rep.Flags)).
		Msg("pipeline run complete")

	return rep, nil
}

// validate applies the fatal pre-checks: every required table must be
// non-empty and the category table must hold a valid forest.
func (r *Runner) validate(input *Input) (*models.CategoryForest, error) {
	defer metrics.ObserveStage(StageValidate, time.Now())

	if len(input.Events) == 0 {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: events", ErrEmptyInput))
	}
	if len(input.Properties) == 0 {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: item_properties", ErrEmptyInput))
	}
	if len(input.Categories) == 0 {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: category_tree", ErrEmptyInput))
	}

	forest, err := models.NewCategoryForest(input.Categories)
	if err != nil {
		return nil, stageErr(StageValidate, err)
	}
	return forest, nil
}

// buildSessions runs the session stage and records its summary.
func (r *Runner) buildSessions(ctx context.Context, events []models.Event, rep *report.Report) (map[int64][]models.Session, error) {
	defer metrics.ObserveStage(StageSessions, time.Now())

	sessions, stats, err := r.builder.Build(ctx, events)
	if err != nil {
		return nil, stageErr(StageSessions, err)
	}

	rep.Sessions = &report.SessionSummary{
		Visitors:      stats.Visitors,
		Sessions:      stats.Sessions,
		DroppedEvents: stats.DroppedEvents,
	}
	return sessions, nil
}

// scoreAndDetect runs the raw association scoring and anomaly detection
// concurrently. The two stages read the same immutable session map and
// write disjoint report sections; the errgroup wait orders those writes
// before any read.
func (r *Runner) scoreAndDetect(ctx context.Context, sessions map[int64][]models.Session, idx *association.PropertyIndex, rep *report.Report) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer metrics.ObserveStage(StageAssociate, time.Now())
		result, err := r.scorer.Score(gctx, sessions, idx)
		if err != nil {
			return stageErr(StageAssociate, err)
		}
		rep.Raw = &report.ScoreSection{
			Scores:                result.Scores,
			TotalCartContexts:     result.TotalCartContexts,
			TotalViewOnlyContexts: result.TotalViewOnlyContexts,
		}
		return nil
	})

	g.Go(func() error {
		defer metrics.ObserveStage(StageDetect, time.Now())
		flags, err := r.detector.Detect(gctx, sessions)
		if err != nil {
			return stageErr(StageDetect, err)
		}
		rep.Flags = flags
		rep.FlaggedVisitors = countFlaggedVisitors(flags)
		return nil
	})

	return g.Wait()
}

// scoreCleaned re-runs the scorer with flagged visitors' sessions removed.
func (r *Runner) scoreCleaned(ctx context.Context, sessions map[int64][]models.Session, idx *association.PropertyIndex, rep *report.Report) error {
	defer metrics.ObserveStage(StageAssociateCleaned, time.Now())

	flagged := make(map[int64]struct{}, len(rep.Flags))
	for _, f := range rep.Flags {
		flagged[f.VisitorID] = struct{}{}
	}

	cleaned := make(map[int64][]models.Session, len(sessions))
	for visitorID, visitorSessions := range sessions {
		if _, ok := flagged[visitorID]; ok {
			continue
		}
		cleaned[visitorID] = visitorSessions
	}

	result, err := r.scorer.Score(ctx, cleaned, idx)
	if err != nil {
		return stageErr(StageAssociateCleaned, err)
	}

	rep.Cleaned = &report.ScoreSection{
		Scores:                result.Scores,
		TotalCartContexts:     result.TotalCartContexts,
		TotalViewOnlyContexts: result.TotalViewOnlyContexts,
	}
	return nil
}

// countFlaggedVisitors counts distinct visitors across flags.
func countFlaggedVisitors(flags []models.VisitorAnomalyFlag) int {
	seen := make(map[int64]struct{}, len(flags))
	for _, f := range flags {
		seen[f.VisitorID] = struct{}{}
	}
	return len(seen)
}

// fail logs and counts a stage failure.
func (r *Runner) fail(err error) error {
	stage := "unknown"
	if se, ok := err.(*StageError); ok {
		stage = se.Stage
	}
	metrics.StageErrors.WithLabelValues(stage).Inc()
	logging.Error().Err(err).Str("stage", stage).Msg("pipeline run failed")
	return err
}
