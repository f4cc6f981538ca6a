// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package models

import (
	"errors"
	"fmt"
)

// ErrCategoryCycle is returned when the category table contains a parent
// chain that loops back on itself.
var ErrCategoryCycle = errors.New("category tree contains a cycle")

// ErrDuplicateCategory is returned when a category id appears in more than
// one row.
var ErrDuplicateCategory = errors.New("duplicate category id")

// CategoryNode is one row of the category tree table. ParentID is nil for
// roots.
type CategoryNode struct {
	ID       int64  `json:"category_id"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// CategoryForest is the validated category hierarchy. The table forms a
// forest: no cycles, each id at most once.
type CategoryForest struct {
	nodes map[int64]CategoryNode
	roots []int64
}

// NewCategoryForest builds and validates a forest from raw rows.
// A parent reference to a missing id is tolerated (the node is treated as
// a root); duplicates and cycles are rejected.
func NewCategoryForest(rows []CategoryNode) (*CategoryForest, error) {
	nodes := make(map[int64]CategoryNode, len(rows))
	for _, row := range rows {
		if _, ok := nodes[row.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateCategory, row.ID)
		}
		nodes[row.ID] = row
	}

	f := &CategoryForest{nodes: nodes}
	for id := range nodes {
		if f.parentOf(id) == nil {
			f.roots = append(f.roots, id)
		}
	}

	// Walk every parent chain; a chain longer than the node count loops.
	for id := range nodes {
		steps := 0
		for cur := &id; cur != nil; {
			steps++
			if steps > len(nodes) {
				return nil, fmt.Errorf("%w: at category %d", ErrCategoryCycle, id)
			}
			cur = f.parentOf(*cur)
		}
	}

	return f, nil
}

// parentOf returns the parent id of a node, or nil if the node is a root
// or its parent is absent from the table.
func (f *CategoryForest) parentOf(id int64) *int64 {
	node, ok := f.nodes[id]
	if !ok || node.ParentID == nil {
		return nil
	}
	if _, ok := f.nodes[*node.ParentID]; !ok {
		return nil
	}
	return node.ParentID
}

// Size returns the number of categories.
func (f *CategoryForest) Size() int {
	return len(f.nodes)
}

// RootCount returns the number of root categories.
func (f *CategoryForest) RootCount() int {
	return len(f.roots)
}

// Depth returns the depth of a category (roots are depth 0) and whether
// the category exists.
func (f *CategoryForest) Depth(id int64) (int, bool) {
	if _, ok := f.nodes[id]; !ok {
		return 0, false
	}
	depth := 0
	for cur := f.parentOf(id); cur != nil; cur = f.parentOf(*cur) {
		depth++
	}
	return depth, true
}

// MaxDepth returns the deepest depth in the forest, or 0 when empty.
func (f *CategoryForest) MaxDepth() int {
	maxDepth := 0
	for id := range f.nodes {
		if d, ok := f.Depth(id); ok && d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}
