// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package model defines the accelerometer error models and the displacement
// drift polynomial. Forward forms map true acceleration to what the sensor
// reports; inverse forms undo them. Everything here is pure.
package model

import (
	"fmt"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"gonum.org/v1/gonum/mat"
)

// Tier is one model in the bias → scale → misalignment sequence.
type Tier int

const (
	TierBias         Tier = 1
	TierScale        Tier = 2
	TierMisalignment Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierBias:
		return "bias"
	case TierScale:
		return "scale"
	case TierMisalignment:
		return "misalignment"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// NumParams is the number of fitted parameters per axis.
func (t Tier) NumParams() int {
	switch t {
	case TierBias:
		return 1
	case TierScale:
		return 2
	case TierMisalignment:
		return 4
	default:
		return 0
	}
}

// ---------- Tier 1: measured = true + bias ----------

// BiasForward returns the measured value for one axis.
func BiasForward(bias, truth float64) float64 { return truth + bias }

// BiasInverse removes a per-axis bias from every sample.
func BiasInverse(bias imu.Vec3, measured []imu.Vec3) []imu.Vec3 {
	out := make([]imu.Vec3, len(measured))
	for i, m := range measured {
		out[i] = imu.Vec3{X: m.X - bias.X, Y: m.Y - bias.Y, Z: m.Z - bias.Z}
	}
	return out
}

// ---------- Tier 2: measured = scale*true + bias ----------

// ScaleForward returns the measured value for one axis.
func ScaleForward(bias, scale, truth float64) float64 { return scale*truth + bias }

// ScaleInverse computes (measured - bias) / scale per axis. A zero scale on any
// axis makes the diagonal model singular.
func ScaleInverse(bias, scale imu.Vec3, measured []imu.Vec3) ([]imu.Vec3, error) {
	for _, a := range imu.Axes {
		if s := scale.Get(a); s == 0 || math.IsNaN(s) {
			return nil, &errs.SingularMatrixError{Cond: math.Inf(1)}
		}
	}
	out := make([]imu.Vec3, len(measured))
	for i, m := range measured {
		out[i] = imu.Vec3{
			X: (m.X - bias.X) / scale.X,
			Y: (m.Y - bias.Y) / scale.Y,
			Z: (m.Z - bias.Z) / scale.Z,
		}
	}
	return out, nil
}

// ---------- Tier 3: measured_i = dot(true, row_i) + bias_i ----------

// MisalignmentForward returns one axis's measured value. row is that axis's row
// of the coupling matrix, so every true component contributes.
func MisalignmentForward(bias float64, row [3]float64, truth imu.Vec3) float64 {
	return truth.X*row[0] + truth.Y*row[1] + truth.Z*row[2] + bias
}

// MisalignmentForwardBatch applies the forward model to a batch of true
// vectors. coupling is row-major: row i holds measured axis i's coefficients.
func MisalignmentForwardBatch(bias imu.Vec3, coupling mat.Matrix, truth []imu.Vec3) []imu.Vec3 {
	if len(truth) == 0 {
		return []imu.Vec3{}
	}
	t := vecsToDense(truth)
	var m mat.Dense
	m.Mul(t, coupling.T())
	out := denseToVecs(&m)
	for i := range out {
		out[i].X += bias.X
		out[i].Y += bias.Y
		out[i].Z += bias.Z
	}
	return out
}

// MisalignmentInverse computes (measured - bias) · coupling⁻¹ for every row
// of the batch in one product. coupling is the transpose of the fitted
// row-major matrix: fitted rows become columns when solving for true values.
func MisalignmentInverse(bias imu.Vec3, coupling mat.Matrix, measured []imu.Vec3) ([]imu.Vec3, error) {
	if r, c := coupling.Dims(); r != 3 || c != 3 {
		return nil, &errs.InputShapeError{Op: "misalignment inverse", Msg: fmt.Sprintf("coupling matrix is %dx%d, want 3x3", r, c)}
	}
	inv, err := invert3(coupling)
	if err != nil {
		return nil, err
	}
	if len(measured) == 0 {
		return []imu.Vec3{}, nil
	}

	centered := make([]imu.Vec3, len(measured))
	for i, m := range measured {
		centered[i] = imu.Vec3{X: m.X - bias.X, Y: m.Y - bias.Y, Z: m.Z - bias.Z}
	}
	var out mat.Dense
	out.Mul(vecsToDense(centered), inv)
	return denseToVecs(&out), nil
}

func invert3(a mat.Matrix) (*mat.Dense, error) {
	var lu mat.LU
	lu.Factorize(a)
	cond := lu.Cond()
	if lu.Det() == 0 || math.IsInf(cond, 1) || math.IsNaN(cond) || cond*epsilon >= 1 {
		return nil, &errs.SingularMatrixError{Cond: cond}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, &errs.SingularMatrixError{Cond: cond}
	}
	return &inv, nil
}

const epsilon = 0x1p-52

// ---------- Drift: error(t) = 0.5*q2*t² + q1*t + q0 ----------

// Drift evaluates the displacement drift polynomial at t.
func Drift(t, q0, q1, q2 float64) float64 {
	return 0.5*q2*t*t + q1*t + q0
}

// DriftSeries evaluates the polynomial over a whole time series.
func DriftSeries(t []float64, q0, q1, q2 float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = Drift(ti, q0, q1, q2)
	}
	return out
}

// ---------- helpers ----------

func vecsToDense(vs []imu.Vec3) *mat.Dense {
	data := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		data = append(data, v.X, v.Y, v.Z)
	}
	return mat.NewDense(len(vs), 3, data)
}

func denseToVecs(m *mat.Dense) []imu.Vec3 {
	r, _ := m.Dims()
	out := make([]imu.Vec3, r)
	for i := range out {
		out[i] = imu.Vec3{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
	}
	return out
}
