// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

// TestRecordingTitle is written as the first row of the level-surface recording.
const TestRecordingTitle = "Acceleration Data Collected on Level Surface. Z up."

// Prompt blocks until the operator has done what msg asks.
type Prompt func(msg string) error

// CollectOptions select which parts of the session run.
type CollectOptions struct {
	SkipPoses     bool
	SkipRecording bool
}

// RunCollect runs a guided session: six static poses written to
// SIX_POSITION_CSV, then a level-surface recording streamed to RECORDING_CSV.
func RunCollect(ctx context.Context, cfg *config.Config, prompt Prompt, opts CollectOptions) error {
	src, closeSrc, err := OpenSource(cfg)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer closeSrc()

	if !opts.SkipPoses {
		ps, err := collectPoses(ctx, cfg, src, prompt)
		if err != nil {
			return err
		}
		if err := dataio.SaveSixPosition(cfg.SixPositionCSV, ps); err != nil {
			return err
		}
		log.Infof("six-position data saved to %s", cfg.SixPositionCSV)
	}

	if !opts.SkipRecording {
		if err := recordLevel(ctx, cfg, src, prompt); err != nil {
			return err
		}
		log.Infof("test recording saved to %s", cfg.RecordingCSV)
	}
	return nil
}

func collectPoses(ctx context.Context, cfg *config.Config, src imu.Source, prompt Prompt) (calibration.Positions, error) {
	ps := make(calibration.Positions, 0, len(calibration.CollectionOrder))
	for i, pose := range calibration.CollectionOrder {
		msg := fmt.Sprintf("[%d/%d] Place the device with %s pointing up and keep it still", i+1, len(calibration.CollectionOrder), pose)
		if err := prompt(msg); err != nil {
			return nil, err
		}
		if p, ok := src.(posable); ok {
			p.SetTruth(pose.Truth())
		}

		sp, n, err := sensors.CapturePose(ctx, src, pose, cfg.PoseDuration(), cfg.SampleInterval())
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"pose":    pose.String(),
			"samples": n,
			"mean":    fmt.Sprintf("%.5f %.5f %.5f", sp.Mean.X, sp.Mean.Y, sp.Mean.Z),
			"std":     fmt.Sprintf("%.5f %.5f %.5f", sp.StdDev.X, sp.StdDev.Y, sp.StdDev.Z),
		}).Info("pose captured")
		ps = append(ps, sp)
	}
	return ps, nil
}

func recordLevel(ctx context.Context, cfg *config.Config, src imu.Source, prompt Prompt) error {
	if err := prompt(fmt.Sprintf("Place the device on a level surface with +z up for the %s test recording", cfg.RecordDuration())); err != nil {
		return err
	}
	if p, ok := src.(posable); ok {
		p.SetTruth(imu.Vec3{Z: 1})
	}

	if dir := filepath.Dir(cfg.RecordingCSV); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(cfg.RecordingCSV)
	if err != nil {
		return err
	}
	defer f.Close()

	rw, err := dataio.NewRecordingWriter(f, TestRecordingTitle)
	if err != nil {
		return err
	}
	n := 0
	err = sensors.Stream(ctx, src, cfg.RecordDuration(), cfg.SampleInterval(), func(s imu.Sample) error {
		n++
		return rw.Write(s)
	})
	if err != nil {
		return fmt.Errorf("test recording: %w", err)
	}
	if err := rw.Flush(); err != nil {
		return err
	}
	log.Infof("recorded %d samples", n)
	return f.Close()
}
