// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Result is a converged fit.
type Result struct {
	Params     []float64
	Covariance *mat.SymDense
	Cost       float64 // weighted sum of squared residuals at Params
	Iterations int
	Dof        int // observations minus parameters
}

// StdErr returns sqrt(diag(Covariance)).
func (r Result) StdErr() []float64 {
	out := make([]float64, len(r.Params))
	if r.Covariance == nil {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i := range out {
		out[i] = math.Sqrt(r.Covariance.At(i, i))
	}
	return out
}

// Uncertainty returns the per-parameter standard error as a percentage of the
// parameter value. A parameter fitted to exactly zero with a non-zero error
// reports +Inf; zero error always reports 0.
func (r Result) Uncertainty() []float64 {
	se := r.StdErr()
	out := make([]float64, len(se))
	for i, e := range se {
		switch {
		case e == 0:
			out[i] = 0
		case r.Params[i] == 0:
			out[i] = math.Inf(1)
		default:
			out[i] = math.Abs(e / r.Params[i] * 100)
		}
	}
	return out
}
