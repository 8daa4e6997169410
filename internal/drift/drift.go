// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package drift fits the quadratic drift that double integration of a biased
// signal leaves in displacement, and removes it.
package drift

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

// Model is error(t) = 0.5*Q2*t² + Q1*t + Q0.
type Model struct {
	Q0 float64 `json:"q0"`
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
}

// Models holds one drift model per axis.
type Models [3]Model

// At evaluates the drift at t.
func (m Model) At(t float64) float64 { return model.Drift(t, m.Q0, m.Q1, m.Q2) }

// Series evaluates the drift over t.
func (m Model) Series(t []float64) []float64 { return model.DriftSeries(t, m.Q0, m.Q1, m.Q2) }

// Fit fits the drift polynomial to a displacement series, unweighted, from a
// zero seed.
func Fit(t, d []float64) (Model, fit.Result, error) {
	if len(t) != len(d) {
		return Model{}, fit.Result{}, &errs.InputShapeError{Op: "drift fit", Msg: fmt.Sprintf("%d timestamps for %d values", len(t), len(d))}
	}
	if len(t) < 3 {
		return Model{}, fit.Result{}, &errs.InputShapeError{Op: "drift fit", Msg: fmt.Sprintf("need at least 3 samples, got %d", len(t))}
	}
	if err := imu.ValidateTimes(t); err != nil {
		return Model{}, fit.Result{}, err
	}

	x := make([][]float64, len(t))
	for i, tv := range t {
		x[i] = []float64{tv}
	}
	res, err := fit.LeastSquares(fit.Problem{
		Func:    model.DriftFunc,
		X:       x,
		Y:       d,
		Initial: []float64{0, 0, 0},
	}, nil)
	if err != nil {
		return Model{}, fit.Result{}, fmt.Errorf("drift fit: %w", err)
	}
	return Model{Q0: res.Params[0], Q1: res.Params[1], Q2: res.Params[2]}, res, nil
}

// FitAxes fits every axis of a displacement triple independently.
func FitAxes(t []float64, disp [3][]float64) (Models, [3]fit.Result, error) {
	var (
		ms  Models
		rs  [3]fit.Result
		err error
	)
	for _, a := range imu.Axes {
		ms[a], rs[a], err = Fit(t, disp[a])
		if err != nil {
			return Models{}, [3]fit.Result{}, fmt.Errorf("axis %s: %w", a, err)
		}
	}
	return ms, rs, nil
}

// Remove returns d minus the drift evaluated at t.
func (m Model) Remove(t, d []float64) ([]float64, error) {
	if len(t) != len(d) {
		return nil, &errs.InputShapeError{Op: "drift removal", Msg: fmt.Sprintf("%d timestamps for %d values", len(t), len(d))}
	}
	out := append([]float64(nil), d...)
	floats.Sub(out, m.Series(t))
	return out, nil
}

// Remove subtracts each axis's drift from its displacement.
func (ms Models) Remove(t []float64, disp [3][]float64) ([3][]float64, error) {
	var out [3][]float64
	for _, a := range imu.Axes {
		d, err := ms[a].Remove(t, disp[a])
		if err != nil {
			return [3][]float64{}, fmt.Errorf("axis %s: %w", a, err)
		}
		out[a] = d
	}
	return out, nil
}
