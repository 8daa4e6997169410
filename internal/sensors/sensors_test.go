// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

func TestCountsPerG(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 16384.0, CountsPerG(0))
	assert.Equal(t, 8192.0, CountsPerG(1))
	assert.Equal(t, 4096.0, CountsPerG(2))
	assert.Equal(t, 2048.0, CountsPerG(3))
}

func TestMockIsDeterministic(t *testing.T) {
	t.Parallel()

	a, b := NewMock(DefaultMock), NewMock(DefaultMock)
	for i := 0; i < 20; i++ {
		va, err := a.Next()
		require.NoError(t, err)
		vb, err := b.Next()
		require.NoError(t, err)
		assert.Equal(t, va, vb)
	}

	quiet := NewMock(MockOptions{Bias: imu.Vec3{X: 0.5}})
	quiet.SetTruth(imu.Vec3{Y: -1})
	v, err := quiet.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{X: 0.5, Y: -1}, v)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	mean, std := Summarize([]imu.Vec3{{X: 1, Y: 2, Z: 3}, {X: 3, Y: 2, Z: -3}})
	assert.Equal(t, imu.Vec3{X: 2, Y: 2, Z: 0}, mean)
	assert.InDelta(t, 1, std.X, 1e-12)
	assert.InDelta(t, 0, std.Y, 1e-12)
	assert.InDelta(t, 3, std.Z, 1e-12)

	mean, std = Summarize(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

type fakePort struct {
	io.Reader
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakePort) Close() error                { f.closed = true; return nil }

func TestSerialLines(t *testing.T) {
	t.Parallel()

	port := &fakePort{Reader: strings.NewReader("0.01,0.0\nBOOT v1.2\n0.01,-0.02,1.01\n\n12.5, 0.02, -0.01, 0.99\n0.1,0.2")}
	s := newSerial(port, "fake")

	v, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{X: 0.01, Y: -0.02, Z: 1.01}, v)

	v, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{X: 0.02, Y: -0.01, Z: 0.99}, v)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	rec, err := Collect(context.Background(), NewMock(DefaultMock), "bench", 40*time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "bench", rec.Title)
	require.Greater(t, rec.Len(), 2)
	require.NoError(t, rec.Validate())
	assert.Less(t, rec.Samples[rec.Len()-1].T, 0.040+0.05)
}

func TestCollectCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, NewMock(DefaultMock), "", time.Second, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

type failing struct{}

func (failing) Next() (imu.Vec3, error) { return imu.Vec3{}, errors.New("bus error") }

func TestCollectSourceError(t *testing.T) {
	t.Parallel()

	_, err := Collect(context.Background(), failing{}, "", time.Second, 0)
	assert.ErrorContains(t, err, "bus error")
}

func TestCapturePose(t *testing.T) {
	t.Parallel()

	m := NewMock(MockOptions{Bias: imu.Vec3{X: 0.01, Y: 0.02, Z: -0.03}, Noise: 0.001, Seed: 7})
	pose := calibration.Pose{Axis: imu.X, Sign: -1}
	m.SetTruth(pose.Truth())

	sp, n, err := CapturePose(context.Background(), m, pose, 30*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Greater(t, n, 10)
	assert.Equal(t, imu.Vec3{X: -1}, sp.Truth)
	assert.InDelta(t, -0.99, sp.Mean.X, 0.002)
	assert.InDelta(t, 0.02, sp.Mean.Y, 0.002)
	assert.InDelta(t, 0.001, sp.StdDev.Z, 0.0005)
}

func TestTilt(t *testing.T) {
	t.Parallel()

	flat := TiltOf(imu.Vec3{Z: 1})
	assert.InDelta(t, 0, flat.Roll, 1e-12)
	assert.InDelta(t, 0, flat.Pitch, 1e-12)

	nose := TiltOf(imu.Vec3{X: -1})
	assert.InDelta(t, 90, nose.Pitch, 1e-12)

	pose, share := DominantPose(imu.Vec3{X: 0.05, Y: -0.98, Z: 0.1})
	assert.Equal(t, calibration.Pose{Axis: imu.Y, Sign: -1}, pose)
	assert.Greater(t, share, 0.99)
}
