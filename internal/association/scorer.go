// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package association scores item properties by their association with
// add-to-cart events versus view-only events.
//
// For every add-to-cart event the items viewed earlier in the same session
// form its "cart context"; their effective property values (as of the cart
// event) accumulate cart-context counts. Views of items never added to
// cart later in the session accumulate the view-only baseline. The lift of
// a (property, value) pair is the ratio of its rate in cart contexts to
// its rate in the baseline.
package association

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/metrics"
	"github.com/tomtom215/cartlift/internal/models"
)

// Epsilon floors the view-only rate in the lift denominator so pairs never
// seen in the baseline do not divide by zero.
const Epsilon = 1e-6

// Config configures the scorer.
type Config struct {
	// MinSupport is the minimum cart-context count for a pair to be kept.
	MinSupport int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MinSupport: 5}
}

// Result is the output of one scoring run.
type Result struct {
	// Scores is ordered: lift descending, then support descending, then
	// property and value ascending. Deterministic across identical input.
	Scores []models.PropertyAssociationScore `json:"scores"`

	// Candidates holds the cart-context count of every pair observed in a
	// cart context, before the support filter.
	Candidates map[Pair]int64 `json:"-"`

	// TotalCartContexts counts item occurrences across all cart contexts.
	TotalCartContexts int64 `json:"total_cart_contexts"`

	// TotalViewOnlyContexts counts view-only item occurrences.
	TotalViewOnlyContexts int64 `json:"total_view_only_contexts"`
}

// Scorer computes property association scores over sessions.
type Scorer struct {
	minSupport int64
}

// NewScorer creates a scorer, applying defaults for zero values.
func NewScorer(cfg Config) *Scorer {
	if cfg.MinSupport < 1 {
		cfg.MinSupport = 5
	}
	return &Scorer{minSupport: cfg.MinSupport}
}

// Score runs the association computation over the session map.
//
// Visitor map iteration order does not matter: counts are associative
// sums, and the final ordering is imposed by the deterministic sort.
func (s *Scorer) Score(ctx context.Context, sessions map[int64][]models.Session, idx *PropertyIndex) (*Result, error) {
	start := time.Now()

	cartCounts := make(map[Pair]int64)
	viewCounts := make(map[Pair]int64)
	var totalCart, totalViewOnly int64

	for _, visitorSessions := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range visitorSessions {
			s.accumulateSession(&visitorSessions[i], idx, cartCounts, viewCounts, &totalCart, &totalViewOnly)
		}
	}

	result := &Result{
		Candidates:            cartCounts,
		TotalCartContexts:     totalCart,
		TotalViewOnlyContexts: totalViewOnly,
	}
	result.Scores = s.rank(cartCounts, viewCounts, totalCart, totalViewOnly)

	metrics.AssociationPairsKept.Add(float64(len(result.Scores)))
	logging.Debug().
		Int("pairs", len(result.Scores)).
		Int64("cart_contexts", totalCart).
		Int64("view_only_contexts", totalViewOnly).
		Dur("elapsed", time.Since(start)).
		Msg("association scoring complete")

	return result, nil
}

// accumulateSession adds one session's contexts to the running counts.
func (s *Scorer) accumulateSession(
	sess *models.Session,
	idx *PropertyIndex,
	cartCounts, viewCounts map[Pair]int64,
	totalCart, totalViewOnly *int64,
) {
	// lastCartPos[item] is the last position where the item was added to
	// cart, for the view-only classification below.
	lastCartPos := make(map[int64]int)
	for i, ev := range sess.Events {
		if ev.Kind == models.EventAddToCart {
			lastCartPos[ev.ItemID] = i
		}
	}

	for i, ev := range sess.Events {
		switch ev.Kind {
		case models.EventAddToCart:
			s.accumulateCartContext(sess, i, idx, cartCounts, totalCart)
		case models.EventView:
			// A view is view-only when no add-to-cart of the same item
			// follows it within the session.
			if pos, ok := lastCartPos[ev.ItemID]; !ok || pos < i {
				*totalViewOnly++
				for _, p := range idx.EffectivePairs(ev.ItemID, ev.Timestamp) {
					viewCounts[p]++
				}
			}
		}
	}
}

// accumulateCartContext counts the distinct items viewed before position
// cartPos, excluding the cart target itself, resolved at the cart event's
// timestamp.
func (s *Scorer) accumulateCartContext(
	sess *models.Session,
	cartPos int,
	idx *PropertyIndex,
	cartCounts map[Pair]int64,
	totalCart *int64,
) {
	cartEvent := sess.Events[cartPos]

	seen := make(map[int64]struct{})
	for j := 0; j < cartPos; j++ {
		ev := sess.Events[j]
		if ev.Kind != models.EventView || ev.ItemID == cartEvent.ItemID {
			continue
		}
		if _, dup := seen[ev.ItemID]; dup {
			continue
		}
		seen[ev.ItemID] = struct{}{}

		*totalCart++
		for _, p := range idx.EffectivePairs(ev.ItemID, cartEvent.Timestamp) {
			cartCounts[p]++
		}
	}
}

// rank turns the raw counts into the filtered, deterministically ordered
// score list.
func (s *Scorer) rank(cartCounts, viewCounts map[Pair]int64, totalCart, totalViewOnly int64) []models.PropertyAssociationScore {
	if totalCart == 0 {
		return nil
	}

	scores := make([]models.PropertyAssociationScore, 0, len(cartCounts))
	for pair, support := range cartCounts {
		if support < s.minSupport {
			continue
		}

		cartRate := float64(support) / float64(totalCart)
		viewRate := 0.0
		if totalViewOnly > 0 {
			viewRate = float64(viewCounts[pair]) / float64(totalViewOnly)
		}
		if viewRate < Epsilon {
			viewRate = Epsilon
		}

		scores = append(scores, models.PropertyAssociationScore{
			Property: pair.Property,
			Value:    pair.Value,
			Lift:     cartRate / viewRate,
			Support:  support,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		return a.Value < b.Value
	})

	return scores
}
