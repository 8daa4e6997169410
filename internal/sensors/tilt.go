// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// Tilt is the accelerometer-only attitude of a stationary device, in degrees.
type Tilt struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// TiltOf computes roll and pitch from a gravity reading in any unit:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func TiltOf(v imu.Vec3) Tilt {
	return Tilt{
		Roll:  math.Atan2(v.Y, v.Z) * 180 / math.Pi,
		Pitch: math.Atan2(-v.X, math.Hypot(v.Y, v.Z)) * 180 / math.Pi,
	}
}

// DominantPose returns the signed axis carrying most of the reading, and the
// share of the vector's magnitude on that axis (1 when perfectly aligned).
func DominantPose(v imu.Vec3) (calibration.Pose, float64) {
	norm := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	best := calibration.Pose{Axis: imu.Z, Sign: 1}
	bestAbs := -1.0
	for _, a := range imu.Axes {
		if c := math.Abs(v.Get(a)); c > bestAbs {
			bestAbs = c
			best = calibration.Pose{Axis: a, Sign: math.Copysign(1, v.Get(a))}
		}
	}
	if norm == 0 {
		return best, 0
	}
	return best, bestAbs / norm
}
