// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

// BiasParams is the tier-1 parameter set.
type BiasParams struct {
	Bias imu.Vec3 `json:"bias"`
}

// ScaleParams is the tier-2 parameter set.
type ScaleParams struct {
	Bias  imu.Vec3 `json:"bias"`
	Scale imu.Vec3 `json:"scale"`
}

// MisalignmentParams is the tier-3 parameter set. Coupling is row-major:
// row i holds measured axis i's coefficients over true x, y and z.
type MisalignmentParams struct {
	Bias     imu.Vec3
	Coupling *mat.Dense
}

// NewMisalignmentParams builds tier-3 parameters from a row-major slice of
// nine coefficients.
func NewMisalignmentParams(bias imu.Vec3, rows []float64) (MisalignmentParams, error) {
	if len(rows) != 9 {
		return MisalignmentParams{}, &errs.InputShapeError{Op: "misalignment params", Msg: fmt.Sprintf("got %d coefficients, want 9", len(rows))}
	}
	return MisalignmentParams{Bias: bias, Coupling: mat.NewDense(3, 3, append([]float64(nil), rows...))}, nil
}

// Rows returns the coupling matrix flattened row by row.
func (p MisalignmentParams) Rows() []float64 {
	if p.Coupling == nil {
		return nil
	}
	return mat.DenseCopyOf(p.Coupling).RawMatrix().Data
}

// CouplingForCorrection returns the transpose of the fitted matrix, which is
// the form the inverse model solves against.
func (p MisalignmentParams) CouplingForCorrection() *mat.Dense {
	return mat.DenseCopyOf(p.Coupling.T())
}

// ParameterSet holds all three tiers and the per-axis fits they came from.
type ParameterSet struct {
	Bias         BiasParams
	Scale        ScaleParams
	Misalignment MisalignmentParams
	Fits         [3]AxisFit
}

// Correct maps measured samples to true acceleration with the tier-3 model.
func Correct(p MisalignmentParams, samples []imu.Vec3) ([]imu.Vec3, error) {
	if p.Coupling == nil {
		return nil, &errs.InputShapeError{Op: "correct", Msg: "no coupling matrix"}
	}
	return model.MisalignmentInverse(p.Bias, p.CouplingForCorrection(), samples)
}

// CorrectBias removes the tier-1 bias.
func CorrectBias(p BiasParams, samples []imu.Vec3) []imu.Vec3 {
	return model.BiasInverse(p.Bias, samples)
}

// CorrectScale applies the tier-2 inverse.
func CorrectScale(p ScaleParams, samples []imu.Vec3) ([]imu.Vec3, error) {
	return model.ScaleInverse(p.Bias, p.Scale, samples)
}

// CorrectRecording returns rec corrected with the chosen tier. The title and
// timestamps are kept.
func (s ParameterSet) CorrectRecording(tier model.Tier, rec imu.Recording) (imu.Recording, error) {
	var (
		out []imu.Vec3
		err error
	)
	switch tier {
	case model.TierBias:
		out = CorrectBias(s.Bias, rec.Accels())
	case model.TierScale:
		out, err = CorrectScale(s.Scale, rec.Accels())
	case model.TierMisalignment:
		out, err = Correct(s.Misalignment, rec.Accels())
	default:
		return imu.Recording{}, fmt.Errorf("unknown tier %d", int(tier))
	}
	if err != nil {
		return imu.Recording{}, fmt.Errorf("correct %s: %w", tier, err)
	}
	return rec.WithAccels(out), nil
}
