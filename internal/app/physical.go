// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// Physical converts corrected readings from g to m/s².
type Physical struct {
	Gravity       float64  // m/s² per g
	Vertical      imu.Axis // axis pointing up during the recording
	RemoveGravity bool     // subtract one g from Vertical after scaling
}

// PhysicalFromConfig reads GRAVITY, VERTICAL_AXIS and REMOVE_GRAVITY.
func PhysicalFromConfig(cfg *config.Config) Physical {
	return Physical{Gravity: cfg.Gravity, Vertical: cfg.VerticalAxis, RemoveGravity: cfg.RemoveGravity}
}

// ToPhysical scales every sample by p.Gravity and, when requested, removes
// the static gravity component from the vertical axis.
func ToPhysical(acc []imu.Vec3, p Physical) []imu.Vec3 {
	out := make([]imu.Vec3, len(acc))
	for i, v := range acc {
		v = imu.Vec3{X: v.X * p.Gravity, Y: v.Y * p.Gravity, Z: v.Z * p.Gravity}
		if p.RemoveGravity {
			v = v.With(p.Vertical, v.Get(p.Vertical)-p.Gravity)
		}
		out[i] = v
	}
	return out
}

// RecordingToPhysical applies ToPhysical to a recording, keeping timestamps.
func RecordingToPhysical(rec imu.Recording, p Physical) imu.Recording {
	return rec.WithAccels(ToPhysical(rec.Accels(), p))
}
