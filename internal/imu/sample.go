// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/errs"
)

// Axis identifies one accelerometer channel.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Axes lists the three channels in storage order.
var Axes = [3]Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts "x", "y" or "z" (case-insensitive).
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return X, nil
	case "y", "Y":
		return Y, nil
	case "z", "Z":
		return Z, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Vec3 is one triaxial reading. Units are whatever the producer uses (g for
// sensors in this repo, m/s² after conversion).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Get returns the component for axis a.
func (v Vec3) Get(a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	default:
		return v.Z
	}
}

// With returns a copy of v with axis a set to val.
func (v Vec3) With(a Axis, val float64) Vec3 {
	switch a {
	case X:
		v.X = val
	case Y:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}

// Finite reports whether no component is NaN or infinite.
func (v Vec3) Finite() bool {
	for _, c := range v.Array() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Array returns the components as [x, y, z].
func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Sample is a timestamped reading. T is seconds since the start of the recording.
type Sample struct {
	T     float64 `json:"t"`
	Accel Vec3    `json:"accel"`
}

// Recording is a time-ordered sequence of samples from one session.
type Recording struct {
	Title   string
	Samples []Sample
}

// Len returns the number of samples.
func (r Recording) Len() int { return len(r.Samples) }

// Times returns the timestamp column.
func (r Recording) Times() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.T
	}
	return out
}

// Column returns the values of one axis.
func (r Recording) Column(a Axis) []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Accel.Get(a)
	}
	return out
}

// Accels returns the acceleration vectors without timestamps.
func (r Recording) Accels() []Vec3 {
	out := make([]Vec3, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Accel
	}
	return out
}

// WithAccels returns a recording with the same timestamps and the given accelerations.
// acc must have the same length as r.
func (r Recording) WithAccels(acc []Vec3) Recording {
	out := Recording{Title: r.Title, Samples: make([]Sample, len(r.Samples))}
	for i, s := range r.Samples {
		out.Samples[i] = Sample{T: s.T, Accel: acc[i]}
	}
	return out
}

// Truncate returns the samples with T-T0 strictly below seconds.
// A non-positive limit returns r unchanged.
func (r Recording) Truncate(seconds float64) Recording {
	if seconds <= 0 || len(r.Samples) == 0 {
		return r
	}
	t0 := r.Samples[0].T
	n := 0
	for n < len(r.Samples) && r.Samples[n].T-t0 < seconds {
		n++
	}
	return Recording{Title: r.Title, Samples: r.Samples[:n]}
}

// Validate checks the recording is non-empty with finite, strictly increasing
// timestamps and finite readings.
func (r Recording) Validate() error {
	if len(r.Samples) == 0 {
		return &errs.InputShapeError{Op: "recording", Msg: "no samples"}
	}
	if err := ValidateTimes(r.Times()); err != nil {
		return err
	}
	for i, s := range r.Samples {
		if !s.Accel.Finite() {
			return &errs.InputShapeError{Op: "recording", Msg: fmt.Sprintf("non-finite reading at index %d", i)}
		}
	}
	return nil
}

// ValidateTimes reports an InputShapeError unless t is finite and strictly increasing.
func ValidateTimes(t []float64) error {
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &errs.InputShapeError{Op: "timestamps", Msg: fmt.Sprintf("non-finite timestamp at index %d", i)}
		}
		if i > 0 && v <= t[i-1] {
			return &errs.InputShapeError{Op: "timestamps", Msg: fmt.Sprintf("timestamp %d (%g) not after %g", i, v, t[i-1])}
		}
	}
	return nil
}

// Source produces one accelerometer reading per call (g units).
// Any angular-rate channel of the device is ignored.
type Source interface {
	Next() (Vec3, error)
}
