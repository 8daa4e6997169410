// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package errs holds the error kinds surfaced by the calibration pipeline.
// None of them is retried: the computations are deterministic.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInputShape       = errors.New("malformed input")
	ErrConvergence      = errors.New("solver did not converge")
	ErrSingularMatrix   = errors.New("singular matrix")
	ErrDegenerateWeight = errors.New("degenerate weight")
)

// InputShapeError reports malformed or short input: wrong column count,
// mismatched lengths, non-increasing timestamps.
type InputShapeError struct {
	Op  string
	Msg string
}

func (e *InputShapeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("input shape: %s", e.Msg)
	}
	return fmt.Sprintf("%s: input shape: %s", e.Op, e.Msg)
}

func (e *InputShapeError) Is(target error) bool { return target == ErrInputShape }

// ConvergenceError reports that the least-squares solver gave up, either on its
// iteration budget or on a rank-deficient Jacobian.
type ConvergenceError struct {
	Iterations int
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("least squares: no convergence after %d iterations: %s", e.Iterations, e.Reason)
}

func (e *ConvergenceError) Is(target error) bool { return target == ErrConvergence }

// SingularMatrixError reports a coupling matrix that cannot be inverted.
type SingularMatrixError struct {
	Cond float64 // condition number, +Inf for exactly singular
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("coupling matrix is singular (condition number %g)", e.Cond)
}

func (e *SingularMatrixError) Is(target error) bool { return target == ErrSingularMatrix }

// DegenerateWeightError reports a zero, negative or missing standard deviation
// supplied as a fit weight.
type DegenerateWeightError struct {
	Index int
	Value float64
}

func (e *DegenerateWeightError) Error() string {
	return fmt.Sprintf("standard deviation %g at observation %d cannot be used as a weight", e.Value, e.Index)
}

func (e *DegenerateWeightError) Is(target error) bool { return target == ErrDegenerateWeight }
