// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/cartlift/internal/models"
)

func catRows() []models.CategoryNode {
	parent := int64(1)
	return []models.CategoryNode{
		{ID: 1},
		{ID: 2, ParentID: &parent},
		{ID: 3, ParentID: &parent},
	}
}

func tokenProp(item int64, prop, token string) models.ItemProperty {
	return models.ItemProperty{
		Timestamp: 0,
		ItemID:    item,
		Property:  prop,
		Values:    []models.PropertyValue{{Kind: models.ValueToken, Token: token}},
	}
}

// testInput builds six regular visitors (two views then an add-to-cart)
// plus one bot visitor that only views, fast and wide.
func testInput() *Input {
	var events []models.Event
	var props []models.ItemProperty

	for v := int64(1); v <= 6; v++ {
		first := 100 + v
		events = append(events,
			models.Event{Timestamp: 0, VisitorID: v, Kind: models.EventView, ItemID: first},
			models.Event{Timestamp: 1000, VisitorID: v, Kind: models.EventView, ItemID: 20},
			models.Event{Timestamp: 2000, VisitorID: v, Kind: models.EventAddToCart, ItemID: 30},
		)
		props = append(props, tokenProp(first, "888", "popular"))
	}
	props = append(props, tokenProp(20, "888", "popular"), tokenProp(30, "888", "target"))

	for i := int64(0); i < 50; i++ {
		events = append(events, models.Event{
			Timestamp: i * 10, VisitorID: 99, Kind: models.EventView, ItemID: 500 + i,
		})
	}

	return &Input{Events: events, Properties: props, Categories: catRows()}
}

func testConfig() Config {
	return Config{
		SessionGap:     30 * time.Minute,
		MinSupport:     1,
		ZThreshold:     2.0, // small test population
		NumericBuckets: 10,
		Workers:        2,
	}
}

func TestRunHappyPath(t *testing.T) {
	runner := NewRunner(testConfig())
	rep, err := runner.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rep.RunID == "" {
		t.Error("report missing run id")
	}
	if rep.Sessions == nil || rep.Sessions.Visitors != 7 {
		t.Errorf("Sessions summary = %+v, want 7 visitors", rep.Sessions)
	}
	if rep.Categories == nil || rep.Categories.Categories != 3 || rep.Categories.Roots != 1 {
		t.Errorf("Categories summary = %+v, want 3 categories, 1 root", rep.Categories)
	}
	if rep.Raw == nil || len(rep.Raw.Scores) == 0 {
		t.Fatal("raw score section empty")
	}
	if rep.Cleaned == nil {
		t.Fatal("cleaned score section missing")
	}
	if len(rep.Flags) == 0 {
		t.Fatal("bot visitor not flagged")
	}
	for _, f := range rep.Flags {
		if f.VisitorID != 99 {
			t.Errorf("unexpected visitor %d flagged", f.VisitorID)
		}
	}
	if rep.FlaggedVisitors != 1 {
		t.Errorf("FlaggedVisitors = %d, want 1", rep.FlaggedVisitors)
	}
}

func TestRunCleanedNeverExceedsRaw(t *testing.T) {
	runner := NewRunner(testConfig())
	rep, err := runner.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rep.Cleaned.TotalCartContexts > rep.Raw.TotalCartContexts {
		t.Errorf("cleaned cart contexts %d exceed raw %d",
			rep.Cleaned.TotalCartContexts, rep.Raw.TotalCartContexts)
	}
	if rep.Cleaned.TotalViewOnlyContexts > rep.Raw.TotalViewOnlyContexts {
		t.Errorf("cleaned view-only contexts %d exceed raw %d",
			rep.Cleaned.TotalViewOnlyContexts, rep.Raw.TotalViewOnlyContexts)
	}

	// With MinSupport 1 the raw scores are the full candidate pool; every
	// cleaned pair must already exist there.
	rawPairs := make(map[[2]string]struct{})
	for _, s := range rep.Raw.Scores {
		rawPairs[[2]string{s.Property, s.Value}] = struct{}{}
	}
	for _, s := range rep.Cleaned.Scores {
		if _, ok := rawPairs[[2]string{s.Property, s.Value}]; !ok {
			t.Errorf("cleaned pair (%s, %s) absent from raw candidate pool", s.Property, s.Value)
		}
	}
}

func TestRunEmptyTables(t *testing.T) {
	base := testInput()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "empty events", mutate: func(in *Input) { in.Events = nil }},
		{name: "empty item properties", mutate: func(in *Input) { in.Properties = nil }},
		{name: "empty category tree", mutate: func(in *Input) { in.Categories = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &Input{
				Events:     base.Events,
				Properties: base.Properties,
				Categories: base.Categories,
			}
			tt.mutate(input)

			runner := NewRunner(testConfig())
			rep, err := runner.Run(context.Background(), input)
			if rep != nil {
				t.Error("empty input produced a partial report")
			}
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("error = %v, want ErrEmptyInput", err)
			}

			var se *StageError
			if !errors.As(err, &se) || se.Stage != StageValidate {
				t.Errorf("error does not name the validate stage: %v", err)
			}
		})
	}
}

func TestRunRejectsCategoryCycle(t *testing.T) {
	input := testInput()
	two, three := int64(2), int64(3)
	input.Categories = []models.CategoryNode{
		{ID: 2, ParentID: &three},
		{ID: 3, ParentID: &two},
	}

	runner := NewRunner(testConfig())
	rep, err := runner.Run(context.Background(), input)
	if rep != nil {
		t.Error("invalid category table produced a report")
	}
	if !errors.Is(err, models.ErrCategoryCycle) {
		t.Errorf("error = %v, want ErrCategoryCycle", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(testConfig())
	if _, err := runner.Run(ctx, testInput()); err == nil {
		t.Error("Run() with cancelled context returned nil error")
	}
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	runner := NewRunner(testConfig())

	first, err := runner.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	for i := 0; i < 3; i++ {
		rep, err := runner.Run(context.Background(), testInput())
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if len(rep.Raw.Scores) != len(first.Raw.Scores) {
			t.Fatalf("raw score count differs between runs")
		}
		for j := range rep.Raw.Scores {
			if rep.Raw.Scores[j] != first.Raw.Scores[j] {
				t.Errorf("raw score %d differs: %+v vs %+v", j, rep.Raw.Scores[j], first.Raw.Scores[j])
			}
		}
		if len(rep.Flags) != len(first.Flags) {
			t.Fatalf("flag count differs between runs")
		}
		for j := range rep.Flags {
			if rep.Flags[j] != first.Flags[j] {
				t.Errorf("flag %d differs: %+v vs %+v", j, rep.Flags[j], first.Flags[j])
			}
		}
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")
	err := stageErr(StageDetect, cause)

	if !errors.Is(err, cause) {
		t.Error("StageError does not unwrap to its cause")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageDetect {
		t.Errorf("errors.As failed to extract stage: %v", err)
	}
	if se.Error() == "" {
		t.Error("empty error string")
	}
}
