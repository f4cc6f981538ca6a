// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package models

import "fmt"

// EventKind identifies the type of a visitor interaction.
type EventKind string

const (
	// EventView is a product page view.
	EventView EventKind = "view"

	// EventAddToCart is an item moved into the purchase cart.
	EventAddToCart EventKind = "addtocart"

	// EventTransaction is a completed purchase.
	EventTransaction EventKind = "transaction"
)

// ParseEventKind converts a raw event string to an EventKind.
// Unknown kinds are rejected so malformed rows can be dropped and counted
// at ingestion rather than carried through the pipeline.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventView, EventAddToCart, EventTransaction:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is a single visitor interaction record.
// Timestamps are epoch milliseconds, matching the source table.
type Event struct {
	Timestamp     int64     `json:"timestamp"`
	VisitorID     int64     `json:"visitor_id"`
	Kind          EventKind `json:"event"`
	ItemID        int64     `json:"item_id"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
}

// Session is a contiguous run of one visitor's events with no inter-event
// gap exceeding the configured inactivity threshold. Events are ordered by
// timestamp, input order preserved on ties.
type Session struct {
	VisitorID int64   `json:"visitor_id"`
	Events    []Event `json:"events"`
	Start     int64   `json:"start"`
	End       int64   `json:"end"`
}

// Duration returns the session span in milliseconds.
func (s *Session) Duration() int64 {
	return s.End - s.Start
}
