// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

// Package models defines the domain types shared across the pipeline:
// raw interaction events, item property history with tagged values,
// the category forest, derived sessions, and the two report entities
// (property association scores and visitor anomaly flags).
//
// Raw entities are immutable once loaded. Derived entities are produced
// per pipeline run and discarded with the run; nothing in this package
// persists state.
package models
