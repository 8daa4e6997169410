// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/charts"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/store"
)

// Calibration is the outcome of RunCalibrate.
type Calibration struct {
	RunID uuid.UUID // uuid.Nil when DB_PATH is empty
	Set   calibration.ParameterSet
}

// FitOptions maps WEIGHTED_FIT and MAX_ITERATIONS onto estimator options.
func FitOptions(cfg *config.Config) calibration.Options {
	opts := calibration.Options{Weighted: cfg.WeightedFit}
	if cfg.MaxIterations > 0 {
		opts.Settings = &fit.Settings{MaxIterations: cfg.MaxIterations}
	}
	return opts
}

// RunCalibrate fits all three tiers to SIX_POSITION_CSV, writes PARAMS_CSV,
// and then, when configured, the fit figure, a run history row and an MQTT report.
func RunCalibrate(ctx context.Context, cfg *config.Config) (Calibration, error) {
	ps, err := dataio.LoadSixPosition(cfg.SixPositionCSV)
	if err != nil {
		return Calibration{}, err
	}

	set, err := calibration.Calibrate(ps, FitOptions(cfg))
	if err != nil {
		return Calibration{}, fmt.Errorf("calibrate %s: %w", cfg.SixPositionCSV, err)
	}
	logFits(set)

	if err := dataio.SaveParams(cfg.ParamsCSV, dataio.DefaultParamsTitle, set); err != nil {
		return Calibration{}, err
	}
	log.Infof("parameters saved to %s", cfg.ParamsCSV)

	if cfg.PlotDir != "" {
		path := filepath.Join(cfg.PlotDir, "six_position_fit.png")
		if err := charts.SaveSixPosition(path, ps, set); err != nil {
			return Calibration{}, fmt.Errorf("six-position chart: %w", err)
		}
		log.Infof("chart saved to %s", path)
	}

	out := Calibration{Set: set}
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return Calibration{}, err
		}
		defer db.Close()
		out.RunID, err = db.SaveRun(ctx, store.Run{
			Source:    cfg.SixPositionCSV,
			Weighted:  cfg.WeightedFit,
			Positions: ps,
			Params:    set,
		})
		if err != nil {
			return Calibration{}, err
		}
		log.Infof("calibration run %s recorded in %s", out.RunID, cfg.DBPath)
	}

	pub, err := NewPublisher(cfg, "calibrate")
	if err != nil {
		log.Warnf("calibration report not published: %v", err)
		return out, nil
	}
	defer pub.Close()
	runID := ""
	if out.RunID != uuid.Nil {
		runID = out.RunID.String()
	}
	if err := pub.PublishJSON(cfg.TopicCalibration, NewCalibrationReport(runID, cfg.WeightedFit, set)); err != nil {
		log.Warnf("calibration report not published: %v", err)
	}
	return out, nil
}

func logFits(set calibration.ParameterSet) {
	for _, a := range imu.Axes {
		f := set.Fits[a]
		log.WithFields(log.Fields{
			"axis":        a.String(),
			"bias":        f.Bias.Bias,
			"uncertainty": fmt.Sprintf("%.3g%%", f.Bias.Result.Uncertainty()),
		}).Info("tier 1 fit")
		log.WithFields(log.Fields{
			"axis":        a.String(),
			"bias":        f.Scale.Bias,
			"scale":       f.Scale.Scale,
			"uncertainty": fmt.Sprintf("%.3g%%", f.Scale.Result.Uncertainty()),
		}).Info("tier 2 fit")
		log.WithFields(log.Fields{
			"axis":        a.String(),
			"bias":        f.Misalignment.Bias,
			"row":         f.Misalignment.Row,
			"uncertainty": fmt.Sprintf("%.3g%%", f.Misalignment.Result.Uncertainty()),
			"iterations":  f.Misalignment.Result.Iterations,
		}).Info("tier 3 fit")
	}
}
