// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package ingest loads the three source CSV tables through an in-memory
// DuckDB instance.
//
// DuckDB's read_csv_auto handles quoting, type inference, and parallel
// scanning, so the loader only has to classify rows: a row that fails to
// scan into the expected shape is dropped and counted, never fatal. The
// three tables are independent; empty-table handling belongs to the
// pipeline's validate stage, not here.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/cartlift/internal/config"
	"github.com/tomtom215/cartlift/internal/logging"
	"github.com/tomtom215/cartlift/internal/metrics"
	"github.com/tomtom215/cartlift/internal/models"
	"github.com/tomtom215/cartlift/internal/pipeline"
)

// Table label values for ingestion metrics.
const (
	tableEvents     = "events"
	tableProperties = "item_properties"
	tableCategories = "category_tree"
)

// Stats reports per-table ingestion outcomes.
type Stats struct {
	EventsLoaded      int64
	EventsDropped     int64
	PropertiesLoaded  int64
	PropertiesDropped int64
	CategoriesLoaded  int64
	CategoriesDropped int64
}

// Loader reads the source tables through DuckDB.
type Loader struct {
	db *sql.DB
}

// Open creates an in-memory DuckDB instance tuned by cfg.
func Open(cfg config.DatabaseConfig) (*Loader, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	dsn := fmt.Sprintf("?threads=%d&max_memory=%s", threads, maxMemory)
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &Loader{db: db}, nil
}

// Close releases the DuckDB instance.
func (l *Loader) Close() error {
	return l.db.Close()
}

// Load reads all three tables and returns them as pipeline input.
func (l *Loader) Load(ctx context.Context, in config.InputConfig) (*pipeline.Input, Stats, error) {
	var stats Stats

	events, err := l.loadEvents(ctx, in.EventsPath, &stats)
	if err != nil {
		return nil, stats, fmt.Errorf("events table: %w", err)
	}
	properties, err := l.loadProperties(ctx, in.ItemPropertiesPath, &stats)
	if err != nil {
		return nil, stats, fmt.Errorf("item properties table: %w", err)
	}
	categories, err := l.loadCategories(ctx, in.CategoryTreePath, &stats)
	if err != nil {
		return nil, stats, fmt.Errorf("category tree table: %w", err)
	}

	logging.Info().
		Int64("events", stats.EventsLoaded).
		Int64("properties", stats.PropertiesLoaded).
		Int64("categories", stats.CategoriesLoaded).
		Int64("dropped", stats.EventsDropped+stats.PropertiesDropped+stats.CategoriesDropped).
		Msg("ingestion complete")

	return &pipeline.Input{
		Events:     events,
		Properties: properties,
		Categories: categories,
	}, stats, nil
}

func (l *Loader) loadEvents(ctx context.Context, path string, stats *Stats) ([]models.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT timestamp, visitorid, event, transactionid, itemid
		 FROM read_csv_auto(?, header=true)`, path)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, tableEvents)

	var events []models.Event
	for rows.Next() {
		var (
			ts, visitor, item sql.NullInt64
			kindRaw           sql.NullString
			txn               sql.NullInt64
		)
		if err := rows.Scan(&ts, &visitor, &kindRaw, &txn, &item); err != nil {
			stats.EventsDropped++
			continue
		}
		if !ts.Valid || !visitor.Valid || !item.Valid || !kindRaw.Valid {
			stats.EventsDropped++
			continue
		}
		if ts.Int64 < 0 || visitor.Int64 < 0 || item.Int64 < 0 {
			stats.EventsDropped++
			continue
		}
		kind, err := models.ParseEventKind(kindRaw.String)
		if err != nil {
			stats.EventsDropped++
			continue
		}

		ev := models.Event{
			Timestamp: ts.Int64,
			VisitorID: visitor.Int64,
			Kind:      kind,
			ItemID:    item.Int64,
		}
		if txn.Valid {
			v := txn.Int64
			ev.TransactionID = &v
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recordTable(tableEvents, int64(len(events)), stats.EventsDropped)
	stats.EventsLoaded = int64(len(events))
	return events, nil
}

func (l *Loader) loadProperties(ctx context.Context, path string, stats *Stats) ([]models.ItemProperty, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT timestamp, itemid, property, value
		 FROM read_csv_auto(?, header=true, all_varchar=true)`, path)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, tableProperties)

	var properties []models.ItemProperty
	for rows.Next() {
		var ts, item sql.NullInt64
		var property, value sql.NullString
		if err := rows.Scan(&ts, &item, &property, &value); err != nil {
			stats.PropertiesDropped++
			continue
		}
		if !ts.Valid || !item.Valid || !property.Valid || !value.Valid || property.String == "" {
			stats.PropertiesDropped++
			continue
		}
		if ts.Int64 < 0 || item.Int64 < 0 {
			stats.PropertiesDropped++
			continue
		}
		values := models.ParsePropertyValues(value.String)
		if len(values) == 0 {
			stats.PropertiesDropped++
			continue
		}

		properties = append(properties, models.ItemProperty{
			Timestamp: ts.Int64,
			ItemID:    item.Int64,
			Property:  property.String,
			Values:    values,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recordTable(tableProperties, int64(len(properties)), stats.PropertiesDropped)
	stats.PropertiesLoaded = int64(len(properties))
	return properties, nil
}

func (l *Loader) loadCategories(ctx context.Context, path string, stats *Stats) ([]models.CategoryNode, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT categoryid, parentid
		 FROM read_csv_auto(?, header=true)`, path)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, tableCategories)

	var categories []models.CategoryNode
	for rows.Next() {
		var id, parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			stats.CategoriesDropped++
			continue
		}
		if !id.Valid {
			stats.CategoriesDropped++
			continue
		}

		node := models.CategoryNode{ID: id.Int64}
		if parent.Valid {
			v := parent.Int64
			node.ParentID = &v
		}
		categories = append(categories, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recordTable(tableCategories, int64(len(categories)), stats.CategoriesDropped)
	stats.CategoriesLoaded = int64(len(categories))
	return categories, nil
}

func recordTable(table string, loaded, dropped int64) {
	metrics.RowsIngested.WithLabelValues(table).Add(float64(loaded))
	if dropped > 0 {
		metrics.RecordsDropped.WithLabelValues(table).Add(float64(dropped))
		logging.Warn().Str("table", table).Int64("dropped", dropped).Msg("dropped malformed rows")
	}
}

func closeRows(rows *sql.Rows, table string) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Str("table", table).Msg("failed to close result set")
	}
}
