// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/accel_calibration/internal/errs"
)

func TestRecordingValidate(t *testing.T) {
	t.Parallel()

	level := Vec3{Z: 1}
	ok := Recording{Samples: []Sample{{T: 0, Accel: level}, {T: 0.1, Accel: level}}}
	assert.NoError(t, ok.Validate())

	cases := map[string][]Sample{
		"empty":              nil,
		"repeated timestamp": {{T: 0, Accel: level}, {T: 0, Accel: level}},
		"nan reading":        {{T: 0, Accel: level}, {T: 0.1, Accel: Vec3{X: math.NaN(), Z: 1}}},
		"infinite reading":   {{T: 0, Accel: Vec3{Y: math.Inf(1)}}},
	}
	for name, samples := range cases {
		t.Run(name, func(t *testing.T) {
			err := Recording{Samples: samples}.Validate()
			assert.ErrorIs(t, err, errs.ErrInputShape)
		})
	}
}

func TestVec3Finite(t *testing.T) {
	t.Parallel()

	assert.True(t, Vec3{X: 1, Y: -2, Z: 3}.Finite())
	assert.False(t, Vec3{Z: math.NaN()}.Finite())
	assert.False(t, Vec3{X: math.Inf(-1)}.Finite())
}
