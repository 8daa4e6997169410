// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration fits the tiered accelerometer error models to six
// static positions and applies the fitted corrections.
package calibration

import (
	"fmt"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// StaticPosition is the summary of one stationary pose: the reference
// gravity vector (in g) and the mean and population standard deviation of the
// readings taken while the device held that pose.
type StaticPosition struct {
	Truth  imu.Vec3 `json:"truth"`
	Mean   imu.Vec3 `json:"mean"`
	StdDev imu.Vec3 `json:"std"`
}

// Positions is the full six-position data set.
type Positions []StaticPosition

// Pose names a signed axis orientation ("+z" means Z points up).
type Pose struct {
	Axis imu.Axis
	Sign float64
}

func (p Pose) String() string {
	if p.Sign < 0 {
		return "-" + p.Axis.String()
	}
	return "+" + p.Axis.String()
}

// Truth returns the reference vector for the pose.
func (p Pose) Truth() imu.Vec3 { return imu.Vec3{}.With(p.Axis, p.Sign) }

// CollectionOrder is the order poses are requested during guided collection.
var CollectionOrder = [6]Pose{
	{imu.Z, 1}, {imu.Z, -1},
	{imu.Y, 1}, {imu.Y, -1},
	{imu.X, 1}, {imu.X, -1},
}

// PoseOf reports which signed axis a truth vector points along. ok is false
// unless exactly one component is ±1 and the others are 0.
func PoseOf(truth imu.Vec3) (Pose, bool) {
	var (
		pose  Pose
		found bool
	)
	for _, a := range imu.Axes {
		switch v := truth.Get(a); v {
		case 0:
		case 1, -1:
			if found {
				return Pose{}, false
			}
			pose, found = Pose{Axis: a, Sign: v}, true
		default:
			return Pose{}, false
		}
	}
	return pose, found
}

// Validate checks there are exactly six positions, one per signed axis, with
// finite means and standard deviations.
func (ps Positions) Validate() error {
	if len(ps) != 6 {
		return &errs.InputShapeError{Op: "six-position", Msg: fmt.Sprintf("got %d positions, want 6", len(ps))}
	}
	seen := make(map[Pose]int, 6)
	for i, p := range ps {
		pose, ok := PoseOf(p.Truth)
		if !ok {
			return &errs.InputShapeError{Op: "six-position", Msg: fmt.Sprintf("position %d: truth %+v is not a unit axis", i, p.Truth)}
		}
		if j, dup := seen[pose]; dup {
			return &errs.InputShapeError{Op: "six-position", Msg: fmt.Sprintf("positions %d and %d are both %s", j, i, pose)}
		}
		seen[pose] = i
		for _, a := range imu.Axes {
			if v := p.Mean.Get(a); math.IsNaN(v) || math.IsInf(v, 0) {
				return &errs.InputShapeError{Op: "six-position", Msg: fmt.Sprintf("position %d: non-finite mean on %s", i, a)}
			}
			if v := p.StdDev.Get(a); math.IsNaN(v) || math.IsInf(v, 0) {
				return &errs.InputShapeError{Op: "six-position", Msg: fmt.Sprintf("position %d: non-finite std on %s", i, a)}
			}
		}
	}
	return nil
}

// observations splits the positions into fit inputs for one measured axis.
// full selects the whole truth vector as input (tier 3); otherwise only the
// axis's own truth component is used.
func (ps Positions) observations(axis imu.Axis, full, weighted bool) (x [][]float64, y, sigma []float64) {
	x = make([][]float64, len(ps))
	y = make([]float64, len(ps))
	if weighted {
		sigma = make([]float64, len(ps))
	}
	for i, p := range ps {
		if full {
			t := p.Truth.Array()
			x[i] = t[:]
		} else {
			x[i] = []float64{p.Truth.Get(axis)}
		}
		y[i] = p.Mean.Get(axis)
		if weighted {
			sigma[i] = p.StdDev.Get(axis)
		}
	}
	return x, y, sigma
}
