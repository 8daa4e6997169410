// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dataio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

const sixPositionCSV = `x_true (g),x_mean (g),x_std,y_true (g),y_mean (g),y_std,z_true (g),z_mean (g),z_std
0.0,0.0121,0.004,0.0,-0.0093,0.004,1.0,1.0212,0.006
0.0,0.0118,0.004,0.0,-0.0101,0.004,-1.0,-0.9797,0.006
0.0,0.0153,0.004,1.0,0.9962,0.004,0.0,0.0205,0.006
0.0,0.0089,0.004,-1.0,-1.0151,0.004,0.0,0.0199,0.006
1.0,1.0084,0.004,0.0,-0.0122,0.004,0.0,0.0231,0.006
-1.0,-0.9862,0.004,0.0,-0.0079,0.004,0.0,0.0187,0.006
`

func TestReadSixPosition(t *testing.T) {
	t.Parallel()

	ps, err := ReadSixPosition(strings.NewReader(sixPositionCSV))
	require.NoError(t, err)
	require.Len(t, ps, 6)
	assert.Equal(t, imu.Vec3{Z: 1}, ps[0].Truth)
	assert.InDelta(t, 1.0212, ps[0].Mean.Z, 0)
	assert.InDelta(t, 0.004, ps[5].StdDev.Y, 0)

	t.Run("round trip through a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "six.csv")
		require.NoError(t, SaveSixPosition(path, ps))
		back, err := LoadSixPosition(path)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(ps, back))
	})
}

func TestReadSixPositionRejects(t *testing.T) {
	t.Parallel()

	lines := strings.Split(strings.TrimSpace(sixPositionCSV), "\n")
	cases := map[string]string{
		"empty":          "",
		"five rows":      strings.Join(lines[:6], "\n"),
		"short row":      strings.Join(append(lines[:6], "1.0,1.0,0.1"), "\n"),
		"non-numeric":    strings.Join(append(lines[:6], "-1.0,abc,0.004,0.0,-0.0079,0.004,0.0,0.0187,0.006"), "\n"),
		"duplicate pose": strings.Join(append(lines[:6], lines[1]), "\n"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSixPosition(strings.NewReader(in))
			assert.ErrorIs(t, err, errs.ErrInputShape)
		})
	}
}

func TestReadRecordingHeaders(t *testing.T) {
	t.Parallel()

	body := "0.000,0.01,-0.02,1.01\n0.006,0.02,-0.01,1.00\n0.011,0.00,-0.02,0.99\n"
	cases := []struct {
		name  string
		in    string
		title string
	}{
		{"title and header", "Acceleration Data Collected on Level Surface. Z up.\ntime (s),x (g),y (g),z (g)\n" + body, "Acceleration Data Collected on Level Surface. Z up."},
		{"header only", "time,x (g),y (g),z (g)\n" + body, ""},
		{"title only", "bench run\n" + body, "bench run"},
		{"no header", body, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ReadRecording(strings.NewReader(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.title, rec.Title)
			assert.Equal(t, []float64{0, 0.006, 0.011}, rec.Times())
			assert.Equal(t, []float64{1.01, 1.00, 0.99}, rec.Column(imu.Z))
		})
	}
}

func TestReadRecordingRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no samples":         "title\ntime,x,y,z\n",
		"three header rows":  "a\nb\nc\n0,1,2,3\n",
		"missing column":     "0,1,2,3\n0.1,1,2\n",
		"repeated timestamp": "0,1,2,3\n0,1,2,3\n",
		"nan reading":        "time (s),x,y,z\n0,0,0,1\n0.1,nan,0,1\n0.2,0,0,1\n",
		"infinite reading":   "0,0,0,1\n0.1,0,+Inf,1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRecording(strings.NewReader(in))
			assert.ErrorIs(t, err, errs.ErrInputShape)
		})
	}
}

func TestRecordingWriter(t *testing.T) {
	t.Parallel()

	rec := imu.Recording{Title: "Z up", Samples: []imu.Sample{
		{T: 0, Accel: imu.Vec3{X: 0.001, Y: -0.002, Z: 1.003}},
		{T: 0.0055, Accel: imu.Vec3{X: 0.0015, Y: -0.0021, Z: 0.9987}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteRecording(&buf, rec))
	assert.True(t, strings.HasPrefix(buf.String(), "Z up\ntime (s),x (g),y (g),z (g)\n"))

	back, err := ReadRecording(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestParamsRoundTrip(t *testing.T) {
	t.Parallel()

	mp, err := calibration.NewMisalignmentParams(imu.Vec3{X: 0.012, Y: -0.0098, Z: 0.0205},
		[]float64{1.0021, -0.0031, 0.0072, 0.0045, 0.9931, -0.0052, -0.0081, 0.0066, 1.0104})
	require.NoError(t, err)
	set := calibration.ParameterSet{
		Bias:         calibration.BiasParams{Bias: imu.Vec3{X: 0.0118, Y: -0.0101, Z: 0.0207}},
		Scale:        calibration.ScaleParams{Bias: imu.Vec3{X: 0.0119, Y: -0.0099, Z: 0.0206}, Scale: imu.Vec3{X: 0.9973, Y: 1.0056, Z: 1.0005}},
		Misalignment: mp,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteParams(&buf, "trial 3", set))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "trial 3", lines[0])
	assert.Len(t, strings.Split(lines[2], ","), 3)
	assert.Len(t, strings.Split(lines[3], ","), 6)
	assert.Len(t, strings.Split(lines[4], ","), 12)

	back, err := ReadParams(&buf)
	require.NoError(t, err)
	assert.Equal(t, set.Bias, back.Bias)
	assert.Equal(t, set.Scale, back.Scale)
	assert.Equal(t, set.Misalignment.Bias, back.Misalignment.Bias)
	assert.True(t, mat.Equal(set.Misalignment.Coupling, back.Misalignment.Coupling))

	t.Run("rejects a short tier row", func(t *testing.T) {
		bad := strings.Join([]string{lines[0], lines[1], lines[2], "1,2,3,4,5", lines[4]}, "\n")
		_, err := ReadParams(strings.NewReader(bad))
		assert.ErrorIs(t, err, errs.ErrInputShape)
	})
	t.Run("rejects a missing tier", func(t *testing.T) {
		_, err := ReadParams(strings.NewReader(strings.Join(lines[:4], "\n")))
		assert.ErrorIs(t, err, errs.ErrInputShape)
	})
}
