// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package integrate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

func TestConstantAcceleration(t *testing.T) {
	t.Parallel()

	const (
		a  = 2.5
		dt = 0.01
		n  = 1001
	)
	ts := make([]float64, n)
	acc := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * dt
		acc[i] = a
	}

	v, d, err := Twice(ts, acc)
	require.NoError(t, err)
	require.Len(t, d, n)
	assert.Zero(t, v[0])
	assert.Zero(t, d[0])

	T := float64(n-1) * dt
	assert.InDelta(t, a*T, v[n-1], 1e-9)
	assert.InDelta(t, a*T*T/2, d[n-1], 1e-9)
}

func TestIrregularRamp(t *testing.T) {
	t.Parallel()

	const k = 3.0
	// Deterministic jitter keeps the steps uneven but strictly increasing.
	ts := make([]float64, 0, 400)
	for i, now := 0, 0.0; i < 400; i++ {
		ts = append(ts, now)
		now += 0.004 + 0.003*math.Abs(math.Sin(float64(i)*1.7))
	}
	acc := make([]float64, len(ts))
	for i, tv := range ts {
		acc[i] = k * tv
	}

	v, d, err := Twice(ts, acc)
	require.NoError(t, err)

	wantV := make([]float64, len(ts))
	wantD := make([]float64, len(ts))
	for i, tv := range ts {
		wantV[i] = k * tv * tv / 2
		wantD[i] = k * tv * tv * tv / 6
	}
	// Trapezoids integrate a linear function exactly.
	assert.Empty(t, cmp.Diff(wantV, v, cmpopts.EquateApprox(1e-12, 1e-12)))
	assert.Empty(t, cmp.Diff(wantD, d, cmpopts.EquateApprox(1e-3, 1e-4)))
}

func TestDisplacementPerAxis(t *testing.T) {
	t.Parallel()

	ts := []float64{0, 0.5, 1, 2}
	acc := []imu.Vec3{{X: 1, Y: 0, Z: -2}, {X: 1, Y: 0, Z: -2}, {X: 1, Y: 0, Z: -2}, {X: 1, Y: 0, Z: -2}}

	disp, err := Displacement(ts, acc)
	require.NoError(t, err)
	assert.InDelta(t, 2, disp[imu.X][3], 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, disp[imu.Y], 0)
	assert.InDelta(t, -4, disp[imu.Z][3], 1e-12)

	single, err := Displacement([]float64{7}, []imu.Vec3{{X: 9}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, single[imu.X])
}

func TestInputShape(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		t, y []float64
	}{
		"empty":              {nil, nil},
		"length mismatch":    {[]float64{0, 1}, []float64{1}},
		"repeated timestamp": {[]float64{0, 1, 1}, []float64{1, 2, 3}},
		"backwards":          {[]float64{0, 2, 1}, []float64{1, 2, 3}},
		"nan timestamp":      {[]float64{0, math.NaN()}, []float64{1, 2}},
		"nan value":          {[]float64{0, 0.1, 0.2}, []float64{1, math.NaN(), 1}},
		"infinite value":     {[]float64{0, 0.1}, []float64{math.Inf(-1), 1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CumulativeTrapezoid(tc.t, tc.y)
			assert.ErrorIs(t, err, errs.ErrInputShape)
		})
	}
}
