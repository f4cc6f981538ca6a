// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks that the configuration is complete and in range.
// Struct tags cover the range and presence checks; cross-field rules are
// applied afterward. Any failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: field %s failed %q check (value %v)",
				ErrInvalidConfig, first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return c.validateInputPaths()
}

// validateInputPaths rejects duplicate table paths, which would silently
// feed one table's rows into another's schema.
func (c *Config) validateInputPaths() error {
	paths := []struct {
		table string
		path  string
	}{
		{"events", c.Input.EventsPath},
		{"item_properties", c.Input.ItemPropertiesPath},
		{"category_tree", c.Input.CategoryTreePath},
	}

	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		if other, ok := seen[p.path]; ok {
			return fmt.Errorf("%w: tables %s and %s share input path %q",
				ErrInvalidConfig, other, p.table, p.path)
		}
		seen[p.path] = p.table
	}
	return nil
}
