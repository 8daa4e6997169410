// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	t.Parallel()

	cases := map[error]error{
		&InputShapeError{Op: "read", Msg: "3 columns"}: ErrInputShape,
		&ConvergenceError{Iterations: 4, Reason: "x"}:  ErrConvergence,
		&SingularMatrixError{Cond: 1e20}:               ErrSingularMatrix,
		&DegenerateWeightError{Index: 2}:               ErrDegenerateWeight,
	}
	all := []error{ErrInputShape, ErrConvergence, ErrSingularMatrix, ErrDegenerateWeight}

	for err, want := range cases {
		wrapped := fmt.Errorf("calibrate: %w", err)
		assert.ErrorIs(t, wrapped, want)
		for _, other := range all {
			if other != want {
				assert.NotErrorIs(t, wrapped, other)
			}
		}
	}

	var shape *InputShapeError
	assert.True(t, errors.As(fmt.Errorf("x: %w", &InputShapeError{Msg: "m"}), &shape))
	assert.Equal(t, "input shape: m", shape.Error())
}
