// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drift

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/integrate"
)

func timeline(n int, dt float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	return t
}

func TestFitRecoversPolynomial(t *testing.T) {
	t.Parallel()

	ts := timeline(600, 0.1)
	want := Model{Q0: 0.02, Q1: -0.15, Q2: 0.046}
	m, res, err := Fit(ts, want.Series(ts))
	require.NoError(t, err)

	assert.InDelta(t, want.Q0, m.Q0, 1e-6)
	assert.InDelta(t, want.Q1, m.Q1, 1e-7)
	assert.InDelta(t, want.Q2, m.Q2, 1e-8)
	assert.Equal(t, 597, res.Dof)

	resid, err := m.Remove(ts, want.Series(ts))
	require.NoError(t, err)
	assert.Less(t, floats.Norm(resid, 2), 1e-5)
}

func TestFitAxesOnIntegratedBias(t *testing.T) {
	t.Parallel()

	// A constant acceleration bias double-integrates to 0.5*b*t², exactly
	// the drift shape.
	ts := timeline(500, 0.02)
	bias := [3]float64{0.05, -0.02, 0.01}
	var disp [3][]float64
	for a, b := range bias {
		acc := make([]float64, len(ts))
		for i := range acc {
			acc[i] = b
		}
		_, d, err := integrate.Twice(ts, acc)
		require.NoError(t, err)
		disp[a] = d
	}

	ms, _, err := FitAxes(ts, disp)
	require.NoError(t, err)
	for a, b := range bias {
		assert.InDelta(t, b, ms[a].Q2, 1e-7)
	}

	clean, err := ms.Remove(ts, disp)
	require.NoError(t, err)
	for a := range clean {
		assert.Less(t, floats.Norm(clean[a], math.Inf(1)), 1e-6)
	}
}

func TestFitInputShape(t *testing.T) {
	t.Parallel()

	_, _, err := Fit([]float64{0, 1}, []float64{0, 1})
	assert.ErrorIs(t, err, errs.ErrInputShape)

	_, _, err = Fit([]float64{0, 1, 2}, []float64{0, 1})
	assert.ErrorIs(t, err, errs.ErrInputShape)

	_, _, err = Fit([]float64{0, 2, 1}, []float64{0, 1, 2})
	assert.ErrorIs(t, err, errs.ErrInputShape)

	_, err = Model{}.Remove([]float64{0}, nil)
	assert.ErrorIs(t, err, errs.ErrInputShape)
}
