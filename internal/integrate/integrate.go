// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package integrate turns acceleration series into velocity and displacement
// with the cumulative trapezoid rule on the recorded timestamps. It is
// unit-agnostic: m/s² in gives m/s and m out.
package integrate

import (
	"fmt"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// CumulativeTrapezoid returns the running integral of y over t. The result has
// the same length as the input and starts at 0.
func CumulativeTrapezoid(t, y []float64) ([]float64, error) {
	if err := check(t, len(y)); err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &errs.InputShapeError{Op: "integrate", Msg: fmt.Sprintf("non-finite value at index %d", i)}
		}
	}
	out := make([]float64, len(y))
	for i := 1; i < len(y); i++ {
		out[i] = out[i-1] + 0.5*(t[i]-t[i-1])*(y[i]+y[i-1])
	}
	return out, nil
}

// Twice integrates acceleration to velocity and then to displacement.
func Twice(t, a []float64) (velocity, displacement []float64, err error) {
	velocity, err = CumulativeTrapezoid(t, a)
	if err != nil {
		return nil, nil, err
	}
	displacement, err = CumulativeTrapezoid(t, velocity)
	if err != nil {
		return nil, nil, err
	}
	return velocity, displacement, nil
}

// Displacement double-integrates every axis of acc independently.
func Displacement(t []float64, acc []imu.Vec3) ([3][]float64, error) {
	var out [3][]float64
	if err := check(t, len(acc)); err != nil {
		return out, err
	}
	col := make([]float64, len(acc))
	for _, a := range imu.Axes {
		for i, v := range acc {
			col[i] = v.Get(a)
		}
		_, d, err := Twice(t, col)
		if err != nil {
			return [3][]float64{}, fmt.Errorf("axis %s: %w", a, err)
		}
		out[a] = d
	}
	return out, nil
}

// Recording double-integrates a whole recording.
func Recording(rec imu.Recording) ([3][]float64, error) {
	return Displacement(rec.Times(), rec.Accels())
}

func check(t []float64, n int) error {
	if len(t) == 0 {
		return &errs.InputShapeError{Op: "integrate", Msg: "empty series"}
	}
	if len(t) != n {
		return &errs.InputShapeError{Op: "integrate", Msg: fmt.Sprintf("%d timestamps for %d values", len(t), n)}
	}
	return imu.ValidateTimes(t)
}
