// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// minPoseShare is the fraction of gravity the requested axis must carry
// before a pose is accepted without a warning (about 18° of tilt).
const minPoseShare = 0.95

// Stream polls src every interval until dur has elapsed or ctx is done,
// handing each sample to fn with its elapsed time since the first read.
// interval 0 polls as fast as the source answers. Samples whose timestamp
// would not advance are dropped so the stream stays strictly increasing.
func Stream(ctx context.Context, src imu.Source, dur, interval time.Duration, fn func(imu.Sample) error) error {
	start := time.Now()
	deadline := start.Add(dur)
	last := -1.0

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := src.Next()
		if err != nil {
			return fmt.Errorf("read sample: %w", err)
		}
		t := time.Since(start).Seconds()
		if t > last {
			if err := fn(imu.Sample{T: t, Accel: v}); err != nil {
				return err
			}
			last = t
		}
		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil
}

// Collect records src for dur into a titled recording.
func Collect(ctx context.Context, src imu.Source, title string, dur, interval time.Duration) (imu.Recording, error) {
	rec := imu.Recording{Title: title}
	err := Stream(ctx, src, dur, interval, func(s imu.Sample) error {
		rec.Samples = append(rec.Samples, s)
		return nil
	})
	if err != nil {
		return imu.Recording{}, err
	}
	return rec, nil
}

// Summarize returns the per-axis mean and population standard deviation.
func Summarize(values []imu.Vec3) (mean, std imu.Vec3) {
	if len(values) == 0 {
		return imu.Vec3{}, imu.Vec3{}
	}
	col := make([]float64, len(values))
	for _, a := range imu.Axes {
		for i, v := range values {
			col[i] = v.Get(a)
		}
		m, s := stat.PopMeanStdDev(col, nil)
		mean = mean.With(a, m)
		std = std.With(a, s)
	}
	return mean, std
}

// CapturePose records a stationary pose and reduces it to a StaticPosition.
func CapturePose(ctx context.Context, src imu.Source, pose calibration.Pose, dur, interval time.Duration) (calibration.StaticPosition, int, error) {
	rec, err := Collect(ctx, src, pose.String(), dur, interval)
	if err != nil {
		return calibration.StaticPosition{}, 0, fmt.Errorf("pose %s: %w", pose, err)
	}
	if rec.Len() < 2 {
		return calibration.StaticPosition{}, rec.Len(), fmt.Errorf("pose %s: only %d samples in %s", pose, rec.Len(), dur)
	}
	mean, std := Summarize(rec.Accels())
	if got, share := DominantPose(mean); got != pose || share < minPoseShare {
		log.WithFields(log.Fields{
			"requested": pose.String(),
			"measured":  got.String(),
			"share":     share,
		}).Warn("device does not look like it is in the requested pose")
	}
	return calibration.StaticPosition{Truth: pose.Truth(), Mean: mean, StdDev: std}, rec.Len(), nil
}
