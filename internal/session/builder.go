// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package session groups raw interaction events into per-visitor sessions.
//
// A session is a contiguous run of one visitor's events where no
// consecutive gap exceeds the configured inactivity threshold. The visitor
// id is the sole partition key, so visitors are sharded across workers and
// each shard is built independently.
package session

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/metrics"
	"github.com/tomtom215/cartlift/internal/models"
)

// Config configures the session builder.
type Config struct {
	// Gap is the inactivity threshold that starts a new session.
	Gap time.Duration

	// Workers is the number of visitor-partition workers. 0 = runtime.NumCPU().
	Workers int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Gap:     30 * time.Minute,
		Workers: 0,
	}
}

// Stats reports per-run accounting from the builder.
type Stats struct {
	// DroppedEvents counts events rejected for malformed timestamps.
	DroppedEvents int64 `json:"dropped_events"`

	// Sessions is the total session count across all visitors.
	Sessions int64 `json:"sessions"`

	// Visitors is the number of distinct visitors with at least one session.
	Visitors int64 `json:"visitors"`
}

// Builder splits event streams into sessions.
type Builder struct {
	gap     time.Duration
	workers int
}

// NewBuilder creates a session builder, applying defaults for zero values.
func NewBuilder(cfg Config) *Builder {
	if cfg.Gap <= 0 {
		cfg.Gap = 30 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Builder{gap: cfg.Gap, workers: cfg.Workers}
}

// indexedEvent carries the original input position so stable ordering on
// timestamp ties survives the per-visitor sort.
type indexedEvent struct {
	event models.Event
	pos   int
}

// Build groups events into per-visitor ordered session sequences.
//
// Events with negative timestamps are dropped and counted, never fatal.
// Every surviving event lands in exactly one session: sessions partition a
// visitor's event stream completely.
func (b *Builder) Build(ctx context.Context, events []models.Event) (map[int64][]models.Session, Stats, error) {
	var dropped int64

	byVisitor := make(map[int64][]indexedEvent)
	for i, ev := range events {
		if ev.Timestamp < 0 {
			dropped++
			continue
		}
		byVisitor[ev.VisitorID] = append(byVisitor[ev.VisitorID], indexedEvent{event: ev, pos: i})
	}

	if dropped > 0 {
		logging.Warn().Int64("dropped", dropped).Msg("dropped events with malformed timestamps")
		metrics.RecordsDropped.WithLabelValues("events").Add(float64(dropped))
	}

	visitors := make([]int64, 0, len(byVisitor))
	for id := range byVisitor {
		visitors = append(visitors, id)
	}

	// Shard visitors across workers; each worker owns its shard's map so
	// no locking is needed until the merge.
	workers := b.workers
	if workers > len(visitors) && len(visitors) > 0 {
		workers = len(visitors)
	}

	shards := make([]map[int64][]models.Session, workers)
	var sessionCount atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		shards[w] = make(map[int64][]models.Session)
		g.Go(func() error {
			for i := w; i < len(visitors); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				id := visitors[i]
				sessions := b.buildVisitor(id, byVisitor[id])
				shards[w][id] = sessions
				sessionCount.Add(int64(len(sessions)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{DroppedEvents: dropped}, err
	}

	result := make(map[int64][]models.Session, len(visitors))
	for _, shard := range shards {
		for id, sessions := range shard {
			result[id] = sessions
		}
	}

	stats := Stats{
		DroppedEvents: dropped,
		Sessions:      sessionCount.Load(),
		Visitors:      int64(len(result)),
	}
	metrics.SessionsBuilt.Add(float64(stats.Sessions))

	return result, stats, nil
}

// buildVisitor sorts one visitor's events and splits them at gaps.
func (b *Builder) buildVisitor(visitorID int64, events []indexedEvent) []models.Session {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].event.Timestamp != events[j].event.Timestamp {
			return events[i].event.Timestamp < events[j].event.Timestamp
		}
		// Duplicate timestamps keep original relative order.
		return events[i].pos < events[j].pos
	})

	gapMillis := b.gap.Milliseconds()

	var sessions []models.Session
	current := []models.Event{events[0].event}

	for i := 1; i < len(events); i++ {
		ev := events[i].event
		if ev.Timestamp-current[len(current)-1].Timestamp > gapMillis {
			sessions = append(sessions, newSession(visitorID, current))
			current = []models.Event{ev}
		} else {
			current = append(current, ev)
		}
	}
	sessions = append(sessions, newSession(visitorID, current))

	return sessions
}

// newSession wraps an ordered event slice into a Session.
func newSession(visitorID int64, events []models.Event) models.Session {
	return models.Session{
		VisitorID: visitorID,
		Events:    events,
		Start:     events[0].Timestamp,
		End:       events[len(events)-1].Timestamp,
	}
}
