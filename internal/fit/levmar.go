// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fit is a small weighted nonlinear least-squares solver
// (Levenberg–Marquardt with Marquardt diagonal scaling).
//
// It minimises sum(((f(p, x_i) - y_i) / sigma_i)^2) and reports the parameter
// covariance scaled by the reduced chi-square, so sigma acts as a relative weight.
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/errs"
)

// Func evaluates the model for one observation.
type Func func(p, x []float64) float64

// Problem is one curve fit.
type Problem struct {
	Func    Func
	X       [][]float64 // one input row per observation
	Y       []float64   // observed outputs
	Sigma   []float64   // optional per-observation standard deviation
	Initial []float64   // starting parameters
}

// Settings control termination. Zero values select the defaults.
type Settings struct {
	// MaxIterations bounds the number of trial steps (default 200*(n+1)).
	MaxIterations int
	// FTol stops when an accepted step reduces the cost by less than FTol*cost.
	FTol float64
	// XTol stops when the step is shorter than XTol*(|p|+XTol).
	XTol float64
	// GTol stops when every Jacobian column is this close to orthogonal to the residual.
	GTol float64
	// Damping is the initial Marquardt parameter.
	Damping float64
}

const (
	defaultTol     = 1.49012e-08
	defaultGTol    = 1e-10
	defaultDamping = 1e-3
	maxDamping     = 1e16
	minDamping     = 1e-15
	rankRCond      = 1e-12
)

func (s *Settings) withDefaults(n int) Settings {
	var out Settings
	if s != nil {
		out = *s
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = 200 * (n + 1)
	}
	if out.FTol <= 0 {
		out.FTol = defaultTol
	}
	if out.XTol <= 0 {
		out.XTol = defaultTol
	}
	if out.GTol <= 0 {
		out.GTol = defaultGTol
	}
	if out.Damping <= 0 {
		out.Damping = defaultDamping
	}
	return out
}

// LeastSquares fits p.Func to the observations starting from p.Initial.
// It never returns partial parameters: any failure comes back as an error
// from package errs.
func LeastSquares(p Problem, s *Settings) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	n := len(p.Initial)
	m := len(p.Y)
	cfg := s.withDefaults(n)

	var w []float64
	if p.Sigma != nil {
		w = make([]float64, m)
		for i, sd := range p.Sigma {
			w[i] = 1 / sd
		}
	}

	resid := func(dst, params []float64) {
		for i, x := range p.X {
			r := p.Func(params, x) - p.Y[i]
			if w != nil {
				r *= w[i]
			}
			dst[i] = r
		}
	}

	params := append([]float64(nil), p.Initial...)
	r := make([]float64, m)
	resid(r, params)
	cost := floats.Dot(r, r)
	if !finite(cost) {
		return Result{}, &errs.InputShapeError{Op: "least squares", Msg: "model is not finite at the initial guess"}
	}

	jac := mat.NewDense(m, n, nil)
	jacSettings := &fd.JacobianSettings{Formula: fd.Central}
	lambda := cfg.Damping

	trial := make([]float64, n)
	trialR := make([]float64, m)
	var (
		jtj  *mat.SymDense
		grad *mat.VecDense
	)
	fresh := true // Jacobian must be recomputed at params

	iter := 0
	for {
		if cost == 0 {
			break
		}
		if fresh {
			fd.Jacobian(jac, resid, params, jacSettings)
			if err := checkRank(jac, n, iter); err != nil {
				return Result{}, err
			}
			jtj = mat.NewSymDense(n, nil)
			jtj.SymOuterK(1, jac.T())
			grad = mat.NewVecDense(n, nil)
			grad.MulVec(jac.T(), mat.NewVecDense(m, r))
			if gradientConverged(jac, grad, r, cfg.GTol) {
				break
			}
			fresh = false
		}

		if iter >= cfg.MaxIterations {
			return Result{}, &errs.ConvergenceError{Iterations: iter, Reason: "iteration budget exhausted"}
		}
		iter++

		step, ok := dampedStep(jtj, grad, lambda)
		if !ok {
			lambda *= 10
			if lambda > maxDamping {
				return Result{}, &errs.ConvergenceError{Iterations: iter, Reason: "damped normal equations are not positive definite"}
			}
			continue
		}

		floats.AddTo(trial, params, step)
		resid(trialR, trial)
		trialCost := floats.Dot(trialR, trialR)
		smallStep := floats.Norm(step, 2) <= cfg.XTol*(floats.Norm(params, 2)+cfg.XTol)

		if finite(trialCost) && trialCost < cost {
			reduction := cost - trialCost
			copy(params, trial)
			copy(r, trialR)
			prev := cost
			cost = trialCost
			lambda = math.Max(lambda/10, minDamping)
			fresh = true
			if smallStep || reduction <= cfg.FTol*prev {
				break
			}
			continue
		}
		if smallStep {
			break
		}
		lambda *= 10
		if lambda > maxDamping {
			return Result{}, &errs.ConvergenceError{Iterations: iter, Reason: "no descent direction found"}
		}
	}

	res := Result{
		Params:     params,
		Cost:       cost,
		Iterations: iter,
		Dof:        m - n,
	}
	cov, err := covariance(jac, resid, params, jacSettings, cost, m, n, iter)
	if err != nil {
		return Result{}, err
	}
	res.Covariance = cov
	return res, nil
}

// dampedStep solves (JᵀJ + λ·diag(JᵀJ)) δ = -Jᵀr.
func dampedStep(jtj *mat.SymDense, grad *mat.VecDense, lambda float64) ([]float64, bool) {
	n := jtj.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	a.CopySym(jtj)
	for i := 0; i < n; i++ {
		d := jtj.At(i, i)
		if d < 1e-300 {
			d = 1e-300
		}
		a.SetSym(i, i, jtj.At(i, i)+lambda*d)
	}
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, false
	}
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, grad); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = -step.AtVec(i)
	}
	return out, true
}

func checkRank(jac *mat.Dense, n, iter int) error {
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDNone) {
		return &errs.ConvergenceError{Iterations: iter, Reason: "SVD of the Jacobian failed"}
	}
	if rank := svd.Rank(rankRCond); rank < n {
		return &errs.ConvergenceError{Iterations: iter, Reason: fmt.Sprintf("Jacobian is rank deficient (rank %d < %d parameters)", rank, n)}
	}
	return nil
}

// gradientConverged is the MINPACK gtol test: the cosine between the residual
// and every Jacobian column is below gtol.
func gradientConverged(jac *mat.Dense, grad *mat.VecDense, r []float64, gtol float64) bool {
	rn := floats.Norm(r, 2)
	if rn == 0 {
		return true
	}
	m, n := jac.Dims()
	col := make([]float64, m)
	for j := 0; j < n; j++ {
		mat.Col(col, j, jac)
		cn := floats.Norm(col, 2)
		if cn == 0 {
			continue
		}
		if math.Abs(grad.AtVec(j))/(cn*rn) > gtol {
			return false
		}
	}
	return true
}

func covariance(jac *mat.Dense, resid func(dst, p []float64), params []float64, js *fd.JacobianSettings, cost float64, m, n, iter int) (*mat.SymDense, error) {
	fd.Jacobian(jac, resid, params, js)
	if err := checkRank(jac, n, iter); err != nil {
		return nil, err
	}
	cov := mat.NewSymDense(n, nil)
	if m <= n {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				cov.SetSym(i, j, math.Inf(1))
			}
		}
		return cov, nil
	}

	jtj := mat.NewSymDense(n, nil)
	jtj.SymOuterK(1, jac.T())
	var chol mat.Cholesky
	if !chol.Factorize(jtj) {
		return nil, &errs.ConvergenceError{Iterations: iter, Reason: "normal matrix is not positive definite at the solution"}
	}
	if err := chol.InverseTo(cov); err != nil {
		return nil, &errs.ConvergenceError{Iterations: iter, Reason: fmt.Sprintf("normal matrix inverse: %v", err)}
	}
	cov.ScaleSym(cost/float64(m-n), cov)
	return cov, nil
}

func (p Problem) validate() error {
	if p.Func == nil {
		return &errs.InputShapeError{Op: "least squares", Msg: "no model function"}
	}
	n := len(p.Initial)
	if n == 0 {
		return &errs.InputShapeError{Op: "least squares", Msg: "no parameters to fit"}
	}
	if len(p.Y) == 0 {
		return &errs.InputShapeError{Op: "least squares", Msg: "no observations"}
	}
	if len(p.X) != len(p.Y) {
		return &errs.InputShapeError{Op: "least squares", Msg: fmt.Sprintf("%d inputs for %d observations", len(p.X), len(p.Y))}
	}
	if p.Sigma != nil && len(p.Sigma) != len(p.Y) {
		return &errs.InputShapeError{Op: "least squares", Msg: fmt.Sprintf("%d standard deviations for %d observations", len(p.Sigma), len(p.Y))}
	}
	width := len(p.X[0])
	for i, x := range p.X {
		if len(x) != width || width == 0 {
			return &errs.InputShapeError{Op: "least squares", Msg: fmt.Sprintf("input row %d has %d values, want %d", i, len(x), width)}
		}
		for _, v := range x {
			if !finite(v) {
				return &errs.InputShapeError{Op: "least squares", Msg: fmt.Sprintf("non-finite input in row %d", i)}
			}
		}
		if !finite(p.Y[i]) {
			return &errs.InputShapeError{Op: "least squares", Msg: fmt.Sprintf("non-finite observation %d", i)}
		}
	}
	for _, v := range p.Initial {
		if !finite(v) {
			return &errs.InputShapeError{Op: "least squares", Msg: "non-finite initial guess"}
		}
	}
	for i, sd := range p.Sigma {
		if !(sd > 0) || math.IsInf(sd, 0) {
			return &errs.DegenerateWeightError{Index: i, Value: sd}
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
