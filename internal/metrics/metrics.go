// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package metrics provides Prometheus instrumentation for the pipeline:
// ingestion volume and drop accounting, per-stage run durations, and
// output cardinality. Collectors are registered on the default registry
// via promauto; a metrics endpoint is a downstream concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartlift_rows_ingested_total",
			Help: "Total rows loaded per source table",
		},
		[]string{"table"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartlift_records_dropped_total",
			Help: "Total malformed records dropped per source table",
		},
		[]string{"table"},
	)

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartlift_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartlift_stage_errors_total",
			Help: "Total pipeline stage failures",
		},
		[]string{"stage"},
	)

	// Output metrics
	SessionsBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartlift_sessions_built_total",
			Help: "Total sessions produced by the session builder",
		},
	)

	AssociationPairsKept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartlift_association_pairs_kept_total",
			Help: "Total (property, value) pairs surviving the support filter",
		},
	)

	AnomalyFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartlift_anomaly_flags_total",
			Help: "Total visitor anomaly flags by reason",
		},
		[]string{"reason"},
	)
)

// ObserveStage records a stage duration from its start time.
//
//	defer metrics.ObserveStage("sessions", time.Now())
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
