// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package model

// Single-observation forms used by the least-squares solver. p holds the
// parameters being fitted, x one observation's inputs.

// BiasFunc: p = [bias], x = [true_axis].
func BiasFunc(p, x []float64) float64 { return BiasForward(p[0], x[0]) }

// ScaleFunc: p = [bias, scale], x = [true_axis].
func ScaleFunc(p, x []float64) float64 { return ScaleForward(p[0], p[1], x[0]) }

// MisalignmentFunc: p = [bias, s_x, s_y, s_z], x = [true_x, true_y, true_z].
func MisalignmentFunc(p, x []float64) float64 {
	return x[0]*p[1] + x[1]*p[2] + x[2]*p[3] + p[0]
}

// DriftFunc: p = [q0, q1, q2], x = [t].
func DriftFunc(p, x []float64) float64 { return Drift(x[0], p[0], p[1], p[2]) }
