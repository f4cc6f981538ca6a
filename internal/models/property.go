// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package models

import (
	"strconv"
	"strings"
)

// CategoryProperty is the literal property tag carrying an item's category
// assignment. Every other property in the source table is a numeric code
// kept as an opaque string.
const CategoryProperty = "categoryid"

// NumericMarker prefixes numeric tokens in the raw value column. A token
// like "n277.200" is the number 277.2; tokens without the marker (or where
// the remainder is not a valid float) are categorical/hashed values.
const NumericMarker = 'n'

// ValueKind distinguishes numeric property values from categorical tokens.
type ValueKind string

const (
	ValueNumeric ValueKind = "numeric"
	ValueToken   ValueKind = "token"
)

// PropertyValue is one parsed token of an item property value.
//
// The source table overloads a single string column to carry both
// whitespace-separated token lists and marker-prefixed numbers. The tag is
// resolved once at ingestion so downstream scoring never inspects raw
// strings: numeric values go through decile bucketing, tokens are matched
// as-is.
type PropertyValue struct {
	Kind    ValueKind `json:"kind"`
	Numeric float64   `json:"numeric,omitempty"`
	Token   string    `json:"token,omitempty"`
}

// ParsePropertyValues splits a raw value string into tagged values.
// Empty input yields nil.
func ParsePropertyValues(raw string) []PropertyValue {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	values := make([]PropertyValue, 0, len(fields))
	for _, f := range fields {
		values = append(values, parseToken(f))
	}
	return values
}

// parseToken classifies a single token as numeric or categorical.
func parseToken(tok string) PropertyValue {
	if len(tok) > 1 && tok[0] == NumericMarker {
		if num, err := strconv.ParseFloat(tok[1:], 64); err == nil {
			return PropertyValue{Kind: ValueNumeric, Numeric: num}
		}
	}
	return PropertyValue{Kind: ValueToken, Token: tok}
}

// ItemProperty is one property-state record for an item. Multiple records
// per (item, property) represent value changes over time; the record with
// the latest timestamp <= a reference time is the effective state at that
// time.
type ItemProperty struct {
	Timestamp int64           `json:"timestamp"`
	ItemID    int64           `json:"item_id"`
	Property  string          `json:"property"`
	Values    []PropertyValue `json:"values"`
}
