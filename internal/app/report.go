// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"math"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// ParamsView is the JSON shape of a parameter set.
type ParamsView struct {
	Bias             imu.Vec3      `json:"bias"`
	ScaleBias        imu.Vec3      `json:"scale_bias"`
	Scale            imu.Vec3      `json:"scale"`
	MisalignmentBias imu.Vec3      `json:"misalignment_bias"`
	Coupling         [3][3]float64 `json:"coupling"`
}

// NewParamsView flattens set for publishing.
func NewParamsView(set calibration.ParameterSet) ParamsView {
	v := ParamsView{
		Bias:             set.Bias.Bias,
		ScaleBias:        set.Scale.Bias,
		Scale:            set.Scale.Scale,
		MisalignmentBias: set.Misalignment.Bias,
	}
	if c := set.Misalignment.Coupling; c != nil {
		for i := range 3 {
			for j := range 3 {
				v.Coupling[i][j] = c.At(i, j)
			}
		}
	}
	return v
}

// FitView is one tier's fit for one axis. Uncertainty entries are percent;
// null when the fit could not bound the parameter.
type FitView struct {
	Params      []float64  `json:"params"`
	Uncertainty []*float64 `json:"uncertainty_pct"`
	Cost        float64    `json:"cost"`
	Iterations  int        `json:"iterations"`
}

func newFitView(r fit.Result) FitView {
	unc := r.Uncertainty()
	out := FitView{
		Params:      r.Params,
		Uncertainty: make([]*float64, len(unc)),
		Cost:        r.Cost,
		Iterations:  r.Iterations,
	}
	for i, u := range unc {
		if !math.IsInf(u, 0) && !math.IsNaN(u) {
			out.Uncertainty[i] = &u
		}
	}
	return out
}

// CalibrationReport is published on TOPIC_CALIBRATION after every fit.
type CalibrationReport struct {
	RunID    string                        `json:"run_id,omitempty"`
	Weighted bool                          `json:"weighted"`
	Params   ParamsView                    `json:"params"`
	Fits     map[string]map[string]FitView `json:"fits"`
}

// NewCalibrationReport builds the report for set. Fits is keyed by axis then tier.
func NewCalibrationReport(runID string, weighted bool, set calibration.ParameterSet) CalibrationReport {
	rep := CalibrationReport{
		RunID:    runID,
		Weighted: weighted,
		Params:   NewParamsView(set),
		Fits:     make(map[string]map[string]FitView, 3),
	}
	for _, a := range imu.Axes {
		f := set.Fits[a]
		if f.Bias.Result.Params == nil {
			continue
		}
		rep.Fits[a.String()] = map[string]FitView{
			"bias":         newFitView(f.Bias.Result),
			"scale":        newFitView(f.Scale.Result),
			"misalignment": newFitView(f.Misalignment.Result),
		}
	}
	return rep
}

// DisplacementReport is published on TOPIC_DISPLACEMENT.
type DisplacementReport struct {
	RunID         string        `json:"run_id,omitempty"`
	CalibrationID string        `json:"calibration_id,omitempty"`
	Recording     string        `json:"recording"`
	Tier          string        `json:"tier"`
	Drift         [3][3]float64 `json:"drift"` // per axis: q0, q1, q2
	Final         imu.Vec3      `json:"final"`
	Tiers         []TierSummary `json:"tiers"`
}
