// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package association

import (
	"fmt"
	"sort"

	"github.com/tomtom215/cartlift/internal/models"
)

// UnknownBucket labels items with no property history as of a reference
// time. Missing history is not an error; the item still counts toward the
// context totals under this bucket.
const UnknownBucket = "unknown"

// revision is one property state with its effective-from timestamp.
type revision struct {
	ts     int64
	values []models.PropertyValue
}

// PropertyIndex resolves the effective property state of an item at a
// reference timestamp: the latest revision with timestamp <= reference,
// per (item, property).
//
// Numeric values are normalized into quantile buckets at build time so the
// counting step only ever sees categorical tokens. Raw token matching on a
// marker-prefixed numeric string is meaningless without this.
type PropertyIndex struct {
	// items[itemID][property] is sorted by revision timestamp ascending.
	items map[int64]map[string][]revision

	// cuts[property] are the quantile boundaries for numeric values.
	cuts map[string][]float64

	buckets int
}

// NewPropertyIndex builds an index from the item property table.
// bucketCount controls numeric quantile bucketing (minimum 2).
func NewPropertyIndex(props []models.ItemProperty, bucketCount int) *PropertyIndex {
	if bucketCount < 2 {
		bucketCount = 10
	}

	idx := &PropertyIndex{
		items:   make(map[int64]map[string][]revision),
		cuts:    make(map[string][]float64),
		buckets: bucketCount,
	}

	numeric := make(map[string][]float64)
	for _, p := range props {
		byProp, ok := idx.items[p.ItemID]
		if !ok {
			byProp = make(map[string][]revision)
			idx.items[p.ItemID] = byProp
		}
		byProp[p.Property] = append(byProp[p.Property], revision{ts: p.Timestamp, values: p.Values})

		for _, v := range p.Values {
			if v.Kind == models.ValueNumeric {
				numeric[p.Property] = append(numeric[p.Property], v.Numeric)
			}
		}
	}

	for _, byProp := range idx.items {
		for prop := range byProp {
			revs := byProp[prop]
			sort.SliceStable(revs, func(i, j int) bool { return revs[i].ts < revs[j].ts })
		}
	}

	for prop, vals := range numeric {
		idx.cuts[prop] = quantileCuts(vals, bucketCount)
	}

	return idx
}

// quantileCuts returns bucketCount-1 boundaries over the observed values.
func quantileCuts(vals []float64, bucketCount int) []float64 {
	sort.Float64s(vals)
	cuts := make([]float64, 0, bucketCount-1)
	for i := 1; i < bucketCount; i++ {
		pos := i * len(vals) / bucketCount
		if pos >= len(vals) {
			pos = len(vals) - 1
		}
		cuts = append(cuts, vals[pos])
	}
	return cuts
}

// bucketToken maps a numeric value to its quantile bucket token for a
// property.
func (idx *PropertyIndex) bucketToken(property string, v float64) string {
	bucket := sort.SearchFloat64s(idx.cuts[property], v)
	return fmt.Sprintf("bucket_%d", bucket)
}

// Pair identifies one (property, value) combination after normalization.
type Pair struct {
	Property string
	Value    string
}

// EffectivePairs returns the normalized (property, value) pairs for an
// item as of the reference timestamp. An item with no effective history
// yields the single unknown pair.
func (idx *PropertyIndex) EffectivePairs(itemID, ref int64) []Pair {
	var pairs []Pair

	for prop, revs := range idx.items[itemID] {
		rev, ok := effectiveRevision(revs, ref)
		if !ok {
			continue
		}
		for _, v := range rev.values {
			switch v.Kind {
			case models.ValueNumeric:
				pairs = append(pairs, Pair{Property: prop, Value: idx.bucketToken(prop, v.Numeric)})
			case models.ValueToken:
				pairs = append(pairs, Pair{Property: prop, Value: v.Token})
			}
		}
	}

	if len(pairs) == 0 {
		return []Pair{{Property: UnknownBucket, Value: UnknownBucket}}
	}
	return pairs
}

// effectiveRevision returns the latest revision with ts <= ref.
func effectiveRevision(revs []revision, ref int64) (revision, bool) {
	// First index with ts > ref; the revision before it is effective.
	i := sort.Search(len(revs), func(i int) bool { return revs[i].ts > ref })
	if i == 0 {
		return revision{}, false
	}
	return revs[i-1], true
}
