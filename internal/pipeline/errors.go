// Cartlift - Retail Clickstream Analytics and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartlift

package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a required source table has zero rows.
var ErrEmptyInput = errors.New("required input table is empty")

// Stage names, as surfaced in StageError and the stage metrics.
const (
	StageValidate         = "validate"
	StageSessions         = "sessions"
	StageAssociate        = "associate"
	StageDetect           = "detect"
	StageAssociateCleaned = "associate_cleaned"
)

// StageError reports which pipeline stage failed and why. The run aborts
// on the first stage failure; there are no retries, since the computation
// is deterministic over static input.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %q failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// stageErr wraps a cause with its stage name.
func stageErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
