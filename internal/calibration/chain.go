// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

// Options control how each tier is fitted.
type Options struct {
	// Weighted divides every residual by the pose's standard deviation.
	Weighted bool
	// Settings is passed through to the solver; nil uses its defaults.
	Settings *fit.Settings
}

// DefaultOptions returns weighted fitting with default solver settings.
func DefaultOptions() Options { return Options{Weighted: true} }

// BiasFit is a tier-1 result for one axis.
type BiasFit struct {
	Axis   imu.Axis
	Bias   float64
	Result fit.Result
}

// ScaleFit is a tier-2 result for one axis.
type ScaleFit struct {
	Axis   imu.Axis
	Bias   float64
	Scale  float64
	Result fit.Result
}

// MisalignmentFit is a tier-3 result for one axis. Row holds the axis's
// coefficients over true x, y and z.
type MisalignmentFit struct {
	Axis   imu.Axis
	Bias   float64
	Row    [3]float64
	Result fit.Result
}

// AxisFit is the full chain for one axis.
type AxisFit struct {
	Bias         BiasFit
	Scale        ScaleFit
	Misalignment MisalignmentFit
}

// FitBias fits measured = true + b, seeded at b = 0.
func FitBias(axis imu.Axis, ps Positions, opts Options) (BiasFit, error) {
	x, y, sigma := ps.observations(axis, false, opts.Weighted)
	res, err := fit.LeastSquares(fit.Problem{
		Func:    model.BiasFunc,
		X:       x,
		Y:       y,
		Sigma:   sigma,
		Initial: []float64{0},
	}, opts.Settings)
	if err != nil {
		return BiasFit{}, fmt.Errorf("tier 1 %s: %w", axis, err)
	}
	return BiasFit{Axis: axis, Bias: res.Params[0], Result: res}, nil
}

// FitScale fits measured = s·true + b, seeded from the tier-1 bias and s = 1.
func FitScale(axis imu.Axis, ps Positions, prev BiasFit, opts Options) (ScaleFit, error) {
	if prev.Axis != axis {
		return ScaleFit{}, fmt.Errorf("tier 2 %s: seeded from %s fit", axis, prev.Axis)
	}
	x, y, sigma := ps.observations(axis, false, opts.Weighted)
	res, err := fit.LeastSquares(fit.Problem{
		Func:    model.ScaleFunc,
		X:       x,
		Y:       y,
		Sigma:   sigma,
		Initial: []float64{prev.Bias, 1},
	}, opts.Settings)
	if err != nil {
		return ScaleFit{}, fmt.Errorf("tier 2 %s: %w", axis, err)
	}
	return ScaleFit{Axis: axis, Bias: res.Params[0], Scale: res.Params[1], Result: res}, nil
}

// FitMisalignment fits measured = dot(true, row) + b. The seed puts the
// tier-2 scale on the axis's own coefficient and zeros on the cross terms.
func FitMisalignment(axis imu.Axis, ps Positions, prev ScaleFit, opts Options) (MisalignmentFit, error) {
	if prev.Axis != axis {
		return MisalignmentFit{}, fmt.Errorf("tier 3 %s: seeded from %s fit", axis, prev.Axis)
	}
	seed := []float64{prev.Bias, 0, 0, 0}
	seed[1+int(axis)] = prev.Scale

	x, y, sigma := ps.observations(axis, true, opts.Weighted)
	res, err := fit.LeastSquares(fit.Problem{
		Func:    model.MisalignmentFunc,
		X:       x,
		Y:       y,
		Sigma:   sigma,
		Initial: seed,
	}, opts.Settings)
	if err != nil {
		return MisalignmentFit{}, fmt.Errorf("tier 3 %s: %w", axis, err)
	}
	return MisalignmentFit{
		Axis:   axis,
		Bias:   res.Params[0],
		Row:    [3]float64{res.Params[1], res.Params[2], res.Params[3]},
		Result: res,
	}, nil
}

// FitAxis runs tier 1, 2 and 3 in order for one axis.
func FitAxis(axis imu.Axis, ps Positions, opts Options) (AxisFit, error) {
	b, err := FitBias(axis, ps, opts)
	if err != nil {
		return AxisFit{}, err
	}
	s, err := FitScale(axis, ps, b, opts)
	if err != nil {
		return AxisFit{}, err
	}
	m, err := FitMisalignment(axis, ps, s, opts)
	if err != nil {
		return AxisFit{}, err
	}
	return AxisFit{Bias: b, Scale: s, Misalignment: m}, nil
}

// Calibrate validates the positions, fits every axis independently and
// assembles the three parameter sets.
func Calibrate(ps Positions, opts Options) (ParameterSet, error) {
	if err := ps.Validate(); err != nil {
		return ParameterSet{}, err
	}

	var set ParameterSet
	coupling := mat.NewDense(3, 3, nil)
	for _, a := range imu.Axes {
		af, err := FitAxis(a, ps, opts)
		if err != nil {
			return ParameterSet{}, err
		}
		set.Fits[a] = af
		set.Bias.Bias = set.Bias.Bias.With(a, af.Bias.Bias)
		set.Scale.Bias = set.Scale.Bias.With(a, af.Scale.Bias)
		set.Scale.Scale = set.Scale.Scale.With(a, af.Scale.Scale)
		set.Misalignment.Bias = set.Misalignment.Bias.With(a, af.Misalignment.Bias)
		coupling.SetRow(int(a), af.Misalignment.Row[:])
	}
	set.Misalignment.Coupling = coupling
	return set, nil
}
