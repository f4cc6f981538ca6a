// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package anomaly flags visitors whose session behavior deviates
// statistically from the population.
//
// Four behavioral features are computed per visitor: total event count,
// session count, distinct item breadth, and median inter-event gap. A
// visitor is flagged on a feature when its z-score against the population
// (mean and standard deviation recomputed per run, never cached) exceeds
// the configured threshold. Flags are independent per feature and never
// deduplicated.
package anomaly

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/metrics"
	"github.com/tomtom215/cartlift/internal/models"
)

// Feature identifies one behavioral statistic.
type Feature string

const (
	FeatureEventCount   Feature = "event_count"
	FeatureSessionCount Feature = "session_count"
	FeatureItemBreadth  Feature = "item_breadth"
	FeatureMedianGap    Feature = "median_gap"
)

// featureReasons maps each feature to the flag reason it emits.
var featureReasons = map[Feature]models.FlagReason{
	FeatureEventCount:   models.ReasonEventRateOutlier,
	FeatureSessionCount: models.ReasonSessionCountOutlier,
	FeatureItemBreadth:  models.ReasonItemBreadthOutlier,
	FeatureMedianGap:    models.ReasonEventGapOutlier,
}

// features in evaluation order, for deterministic flag output.
var features = []Feature{
	FeatureEventCount,
	FeatureSessionCount,
	FeatureItemBreadth,
	FeatureMedianGap,
}

// Config configures the detector.
type Config struct {
	// ZThreshold is the |z| above which a feature is flagged.
	ZThreshold float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ZThreshold: 3.0}
}

// Detector computes per-visitor features and flags outliers.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector, applying defaults for zero values.
func NewDetector(cfg Config) *Detector {
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = 3.0
	}
	return &Detector{threshold: cfg.ZThreshold}
}

// observation is one visitor's value for one feature.
type observation struct {
	visitorID int64
	value     float64
}

// Detect flags outlier visitors across the session map.
// Output is ordered by visitor id, then feature order, for determinism.
func (d *Detector) Detect(ctx context.Context, sessions map[int64][]models.Session) ([]models.VisitorAnomalyFlag, error) {
	start := time.Now()

	populations := make(map[Feature][]observation, len(features))
	for visitorID, visitorSessions := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for feat, val := range visitorFeatures(visitorSessions) {
			populations[feat] = append(populations[feat], observation{visitorID: visitorID, value: val})
		}
	}

	var flags []models.VisitorAnomalyFlag
	for _, feat := range features {
		obs := populations[feat]
		// Fixed summation order keeps scores bit-identical across runs.
		sort.Slice(obs, func(i, j int) bool { return obs[i].visitorID < obs[j].visitorID })
		mean, stddev := meanStddev(obs)
		if stddev == 0 {
			// A degenerate population has no outliers.
			continue
		}
		for _, o := range obs {
			z := (o.value - mean) / stddev
			if math.Abs(z) > d.threshold {
				flags = append(flags, models.VisitorAnomalyFlag{
					VisitorID: o.visitorID,
					Reason:    featureReasons[feat],
					Score:     z,
				})
			}
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].VisitorID != flags[j].VisitorID {
			return flags[i].VisitorID < flags[j].VisitorID
		}
		return featureRank(flags[i].Reason) < featureRank(flags[j].Reason)
	})

	for _, f := range flags {
		metrics.AnomalyFlags.WithLabelValues(string(f.Reason)).Inc()
	}
	logging.Debug().
		Int("flags", len(flags)).
		Int("visitors", len(sessions)).
		Dur("elapsed", time.Since(start)).
		Msg("anomaly detection complete")

	return flags, nil
}

// featureRank orders reasons by their feature evaluation order.
func featureRank(reason models.FlagReason) int {
	for i, feat := range features {
		if featureReasons[feat] == reason {
			return i
		}
	}
	return len(features)
}

// visitorFeatures computes the behavioral statistics for one visitor.
// The median gap is omitted for visitors with fewer than two events; they
// do not join that feature's population.
func visitorFeatures(sessions []models.Session) map[Feature]float64 {
	eventCount := 0
	items := make(map[int64]struct{})
	var timestamps []int64

	for _, s := range sessions {
		eventCount += len(s.Events)
		for _, ev := range s.Events {
			items[ev.ItemID] = struct{}{}
			timestamps = append(timestamps, ev.Timestamp)
		}
	}

	feats := map[Feature]float64{
		FeatureEventCount:   float64(eventCount),
		FeatureSessionCount: float64(len(sessions)),
		FeatureItemBreadth:  float64(len(items)),
	}

	if len(timestamps) >= 2 {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
		gaps := make([]float64, 0, len(timestamps)-1)
		for i := 1; i < len(timestamps); i++ {
			gaps = append(gaps, float64(timestamps[i]-timestamps[i-1]))
		}
		feats[FeatureMedianGap] = median(gaps)
	}

	return feats
}

// median returns the middle value of a sorted copy of vals.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// meanStddev returns the population mean and standard deviation.
func meanStddev(obs []observation) (float64, float64) {
	if len(obs) == 0 {
		return 0, 0
	}

	var sum float64
	for _, o := range obs {
		sum += o.value
	}
	mean := sum / float64(len(obs))

	var sqDiff float64
	for _, o := range obs {
		d := o.value - mean
		sqDiff += d * d
	}
	return mean, math.Sqrt(sqDiff / float64(len(obs)))
}
