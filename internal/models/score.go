// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package models

// PropertyAssociationScore ranks one (property, value) pair by its
// association with add-to-cart contexts versus view-only contexts.
// Support is the raw cart-context count backing the lift.
type PropertyAssociationScore struct {
	Property string  `json:"property"`
	Value    string  `json:"value"`
	Lift     float64 `json:"lift_score"`
	Support  int64   `json:"support_count"`
}

// FlagReason identifies which behavioral feature pushed a visitor past the
// outlier threshold.
type FlagReason string

const (
	// ReasonEventRateOutlier flags visitors with an extreme total event count.
	ReasonEventRateOutlier FlagReason = "event_rate_outlier"

	// ReasonSessionCountOutlier flags visitors with an extreme session count.
	ReasonSessionCountOutlier FlagReason = "session_count_outlier"

	// ReasonItemBreadthOutlier flags visitors touching an extreme number of
	// distinct items.
	ReasonItemBreadthOutlier FlagReason = "item_breadth_outlier"

	// ReasonEventGapOutlier flags visitors whose median inter-event gap is
	// extreme (bots pace very evenly and very fast).
	ReasonEventGapOutlier FlagReason = "event_gap_outlier"
)

// VisitorAnomalyFlag marks one visitor as an outlier on one feature.
// A visitor may carry several flags; they are independent per feature.
// Score is the signed z-score that crossed the threshold.
type VisitorAnomalyFlag struct {
	VisitorID int64      `json:"visitor_id"`
	Reason    FlagReason `json:"reason"`
	Score     float64    `json:"score"`
}
