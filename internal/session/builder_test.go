// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package session

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/cartlift/internal/models"
)

func view(ts, visitor, item int64) models.Event {
	return models.Event{Timestamp: ts, VisitorID: visitor, Kind: models.EventView, ItemID: item}
}

func TestNewBuilderDefaults(t *testing.T) {
	b := NewBuilder(Config{})
	if b.gap != 30*time.Minute {
		t.Errorf("gap = %v, want 30m", b.gap)
	}
	if b.workers < 1 {
		t.Errorf("workers = %d, want >= 1", b.workers)
	}
}

func TestBuildGapSplitting(t *testing.T) {
	gap := 30 * time.Minute
	gapMs := gap.Milliseconds()

	tests := []struct {
		name         string
		events       []models.Event
		wantSessions []int // event counts per session, in order
	}{
		{
			name:         "single event yields single-event session",
			events:       []models.Event{view(1000, 1, 10)},
			wantSessions: []int{1},
		},
		{
			name: "events within gap stay in one session",
			events: []models.Event{
				view(0, 1, 10),
				view(gapMs, 1, 11), // exactly at threshold: same session
				view(2*gapMs, 1, 12),
			},
			wantSessions: []int{3},
		},
		{
			name: "gap over threshold splits",
			events: []models.Event{
				view(0, 1, 10),
				view(gapMs+1, 1, 11),
			},
			wantSessions: []int{1, 1},
		},
		{
			name: "unsorted input is ordered by timestamp",
			events: []models.Event{
				view(5000, 1, 12),
				view(0, 1, 10),
				view(1000, 1, 11),
			},
			wantSessions: []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(Config{Gap: gap, Workers: 1})
			sessions, stats, err := b.Build(context.Background(), tt.events)
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}

			got := sessions[1]
			if len(got) != len(tt.wantSessions) {
				t.Fatalf("got %d sessions, want %d", len(got), len(tt.wantSessions))
			}
			for i, want := range tt.wantSessions {
				if len(got[i].Events) != want {
					t.Errorf("session[%d] has %d events, want %d", i, len(got[i].Events), want)
				}
			}
			if stats.DroppedEvents != 0 {
				t.Errorf("DroppedEvents = %d, want 0", stats.DroppedEvents)
			}
		})
	}
}

func TestBuildSessionInvariants(t *testing.T) {
	// Every event must land in exactly one session, gaps within a session
	// must be <= threshold, and gaps across a session boundary > threshold.
	gap := 10 * time.Minute
	gapMs := gap.Milliseconds()

	events := []models.Event{
		view(0, 7, 1),
		view(gapMs/2, 7, 2),
		view(gapMs/2+gapMs+1, 7, 3), // boundary
		view(2*gapMs+gapMs, 7, 4),
		view(10*gapMs, 7, 5), // boundary
	}

	b := NewBuilder(Config{Gap: gap, Workers: 2})
	sessions, stats, err := b.Build(context.Background(), events)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	total := 0
	var all []models.Session
	for _, s := range sessions[7] {
		total += len(s.Events)
		all = append(all, s)
	}
	if total != len(events) {
		t.Errorf("sessions cover %d events, want %d (complete partition)", total, len(events))
	}
	if stats.Sessions != int64(len(all)) {
		t.Errorf("stats.Sessions = %d, want %d", stats.Sessions, len(all))
	}

	for si, s := range all {
		for i := 1; i < len(s.Events); i++ {
			if g := s.Events[i].Timestamp - s.Events[i-1].Timestamp; g > gapMs {
				t.Errorf("session %d internal gap %d exceeds threshold %d", si, g, gapMs)
			}
		}
		if s.Start != s.Events[0].Timestamp || s.End != s.Events[len(s.Events)-1].Timestamp {
			t.Errorf("session %d start/end (%d, %d) inconsistent with events", si, s.Start, s.End)
		}
		if si > 0 {
			boundary := s.Events[0].Timestamp - all[si-1].End
			if boundary <= gapMs {
				t.Errorf("boundary gap %d between sessions %d and %d not over threshold", boundary, si-1, si)
			}
		}
	}
}

func TestBuildStableOnDuplicateTimestamps(t *testing.T) {
	// Duplicate timestamps keep input order.
	events := []models.Event{
		view(100, 1, 10),
		view(100, 1, 11),
		view(100, 1, 12),
	}

	b := NewBuilder(Config{Gap: time.Minute, Workers: 1})
	sessions, _, err := b.Build(context.Background(), events)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	got := sessions[1][0].Events
	for i, wantItem := range []int64{10, 11, 12} {
		if got[i].ItemID != wantItem {
			t.Errorf("event[%d].ItemID = %d, want %d (input order on ties)", i, got[i].ItemID, wantItem)
		}
	}
}

func TestBuildDropsMalformedTimestamps(t *testing.T) {
	events := []models.Event{
		view(100, 1, 10),
		view(-5, 1, 11),
		view(200, 2, 12),
		view(-1, 2, 13),
	}

	b := NewBuilder(Config{Gap: time.Minute, Workers: 1})
	sessions, stats, err := b.Build(context.Background(), events)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if stats.DroppedEvents != 2 {
		t.Errorf("DroppedEvents = %d, want 2", stats.DroppedEvents)
	}
	if n := len(sessions[1][0].Events); n != 1 {
		t.Errorf("visitor 1 kept %d events, want 1", n)
	}
	if n := len(sessions[2][0].Events); n != 1 {
		t.Errorf("visitor 2 kept %d events, want 1", n)
	}
}

func TestBuildMultipleVisitorsParallel(t *testing.T) {
	// Many visitors across several workers: each visitor's events stay
	// with that visitor and all visitors appear in the merged result.
	var events []models.Event
	const visitors = 50
	for v := int64(0); v < visitors; v++ {
		events = append(events, view(v*10, v, v), view(v*10+1, v, v+1000))
	}

	b := NewBuilder(Config{Gap: time.Minute, Workers: 8})
	sessions, stats, err := b.Build(context.Background(), events)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if stats.Visitors != visitors {
		t.Fatalf("Visitors = %d, want %d", stats.Visitors, visitors)
	}
	for v := int64(0); v < visitors; v++ {
		got := sessions[v]
		if len(got) != 1 || len(got[0].Events) != 2 {
			t.Errorf("visitor %d sessions malformed: %+v", v, got)
			continue
		}
		for _, ev := range got[0].Events {
			if ev.VisitorID != v {
				t.Errorf("visitor %d session contains event for visitor %d", v, ev.VisitorID)
			}
		}
	}
}

func TestBuildContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []models.Event
	for v := int64(0); v < 100; v++ {
		events = append(events, view(v, v, v))
	}

	b := NewBuilder(Config{Gap: time.Minute, Workers: 4})
	_, _, err := b.Build(ctx, events)
	if err == nil {
		t.Error("Build() with cancelled context returned nil error")
	}
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewBuilder(Config{Gap: time.Minute, Workers: 2})
	sessions, stats, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(sessions) != 0 || stats.Sessions != 0 {
		t.Errorf("empty input produced sessions: %+v", sessions)
	}
}
