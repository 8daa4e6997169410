// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/charts"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/drift"
	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/integrate"
	"github.com/relabs-tech/accel_calibration/internal/model"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
	"github.com/relabs-tech/accel_calibration/internal/store"
)

// DisplacementOptions select the recordings and correction tier.
type DisplacementOptions struct {
	Recording string     // drift is fitted on this recording; empty means RECORDING_CSV
	Apply     string     // drift is removed from this one; empty means Recording
	Limit     float64    // seconds kept from the start of each recording; 0 keeps all
	Tier      model.Tier // zero means TierMisalignment
}

// Displacement is the outcome of RunDisplacement.
type Displacement struct {
	RunID     uuid.UUID
	Tiers     []TierSummary // statistics of the fitted recording per tier
	Drift     drift.Models
	DriftFits [3]fit.Result
	Times     []float64    // timestamps of the target recording
	Raw       [3][]float64 // target displacement before drift removal
	Corrected [3][]float64 // target displacement after drift removal
	Final     imu.Vec3
}

// integrated is one recording after correction, unit conversion and double integration.
type integrated struct {
	times []float64
	acc   imu.Recording
	disp  [3][]float64
}

func integrateRecording(path string, limit float64, set calibration.ParameterSet, tier model.Tier, p Physical) (integrated, error) {
	rec, err := dataio.LoadRecording(path)
	if err != nil {
		return integrated{}, err
	}
	rec = rec.Truncate(limit)
	corrected, err := set.CorrectRecording(tier, rec)
	if err != nil {
		return integrated{}, fmt.Errorf("%s: %w", path, err)
	}
	phys := RecordingToPhysical(corrected, p)
	disp, err := integrate.Recording(phys)
	if err != nil {
		return integrated{}, fmt.Errorf("%s: %w", path, err)
	}
	return integrated{times: phys.Times(), acc: phys, disp: disp}, nil
}

// RunDisplacement corrects a recording with PARAMS_CSV, integrates it twice,
// fits a quadratic drift per axis and removes that drift from the target
// recording. Figures, a history row and an MQTT report follow when configured.
func RunDisplacement(ctx context.Context, cfg *config.Config, opts DisplacementOptions) (Displacement, error) {
	if opts.Recording == "" {
		opts.Recording = cfg.RecordingCSV
	}
	if opts.Apply == "" {
		opts.Apply = opts.Recording
	}
	if opts.Tier == 0 {
		opts.Tier = model.TierMisalignment
	}
	phys := PhysicalFromConfig(cfg)

	set, err := dataio.LoadParams(cfg.ParamsCSV)
	if err != nil {
		return Displacement{}, err
	}

	// ---- 1) drift fit on the reference recording ----
	ref, err := integrateRecording(opts.Recording, opts.Limit, set, opts.Tier, phys)
	if err != nil {
		return Displacement{}, err
	}
	var out Displacement
	if out.Drift, out.DriftFits, err = drift.FitAxes(ref.times, ref.disp); err != nil {
		return Displacement{}, fmt.Errorf("drift fit %s: %w", opts.Recording, err)
	}
	for _, a := range imu.Axes {
		m := out.Drift[a]
		log.WithFields(log.Fields{
			"axis":        a.String(),
			"q0":          m.Q0,
			"q1":          m.Q1,
			"q2":          m.Q2,
			"uncertainty": fmt.Sprintf("%.3g%%", out.DriftFits[a].Uncertainty()),
		}).Info("drift fit")
	}

	rec, err := dataio.LoadRecording(opts.Recording)
	if err != nil {
		return Displacement{}, err
	}
	rec = rec.Truncate(opts.Limit)
	if out.Tiers, err = Summarize(rec, set, phys); err != nil {
		return Displacement{}, err
	}

	// ---- 2) drift removal on the target recording ----
	target := ref
	if opts.Apply != opts.Recording {
		if target, err = integrateRecording(opts.Apply, opts.Limit, set, opts.Tier, phys); err != nil {
			return Displacement{}, err
		}
	}
	out.Times = target.times
	out.Raw = target.disp
	if out.Corrected, err = out.Drift.Remove(target.times, target.disp); err != nil {
		return Displacement{}, err
	}
	out.Final = finalOf(out.Corrected)
	log.WithFields(log.Fields{
		"recording": opts.Apply,
		"tier":      opts.Tier.String(),
		"x":         out.Final.X,
		"y":         out.Final.Y,
		"z":         out.Final.Z,
	}).Info("final displacement after drift removal (m)")

	// ---- 3) outputs ----
	if cfg.PlotDir != "" {
		if err := saveDisplacementCharts(cfg.PlotDir, ref, target, out); err != nil {
			return Displacement{}, err
		}
		if err := saveNoiseHistograms(cfg.PlotDir, rec, phys.Gravity); err != nil {
			return Displacement{}, err
		}
	}

	var calibrationID uuid.UUID
	if cfg.DBPath != "" {
		if calibrationID, out.RunID, err = recordDisplacement(ctx, cfg.DBPath, opts, out.Final); err != nil {
			return Displacement{}, err
		}
	}

	pub, err := NewPublisher(cfg, "displacement")
	if err != nil {
		log.Warnf("displacement report not published: %v", err)
		return out, nil
	}
	defer pub.Close()
	rep := DisplacementReport{
		Recording: opts.Apply,
		Tier:      opts.Tier.String(),
		Final:     out.Final,
		Tiers:     out.Tiers,
	}
	if out.RunID != uuid.Nil {
		rep.RunID = out.RunID.String()
	}
	if calibrationID != uuid.Nil {
		rep.CalibrationID = calibrationID.String()
	}
	for _, a := range imu.Axes {
		rep.Drift[a] = [3]float64{out.Drift[a].Q0, out.Drift[a].Q1, out.Drift[a].Q2}
	}
	if err := pub.PublishJSON(cfg.TopicDisplacement, rep); err != nil {
		log.Warnf("displacement report not published: %v", err)
	}
	return out, nil
}

func saveDisplacementCharts(dir string, ref, target integrated, out Displacement) error {
	var acc [3][]float64
	for _, a := range imu.Axes {
		acc[a] = target.acc.Column(a)
	}
	figures := []struct {
		name string
		save func(path string) error
	}{
		{"acceleration_corrected.png", func(path string) error {
			return charts.SaveAxes(path, "Corrected acceleration", "Acceleration (m/s²)", target.times, acc)
		}},
		{"drift_fit.png", func(path string) error {
			return charts.SaveDriftFit(path, "Displacement and fitted drift", ref.times, ref.disp, out.Drift)
		}},
		{"displacement_corrected.png", func(path string) error {
			return charts.SaveAxes(path, "Displacement after drift removal", "Displacement (m)", out.Times, out.Corrected)
		}},
	}
	for _, f := range figures {
		path := filepath.Join(dir, f.name)
		if err := f.save(path); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		log.Infof("chart saved to %s", path)
	}
	return nil
}

// noiseBins is the histogram resolution for static noise plots.
const noiseBins = 100

// NoiseStd returns the population standard deviation per axis of the raw
// readings in m/s².
func NoiseStd(rec imu.Recording, gravity float64) imu.Vec3 {
	_, std := sensors.Summarize(rec.Accels())
	return imu.Vec3{X: std.X * gravity, Y: std.Y * gravity, Z: std.Z * gravity}
}

// saveNoiseHistograms writes one mean-centred histogram per axis of the raw
// readings in m/s².
func saveNoiseHistograms(dir string, rec imu.Recording, gravity float64) error {
	std := NoiseStd(rec, gravity)
	for _, a := range imu.Axes {
		col := rec.Column(a)
		floats.Scale(gravity, col)
		floats.AddConst(-stat.Mean(col, nil), col)

		path := filepath.Join(dir, fmt.Sprintf("noise_hist_%s.png", a))
		title := fmt.Sprintf("Static noise, %s axis (std %.4f m/s²)", a, std.Get(a))
		if err := charts.SaveHistogram(path, title, "Acceleration (m/s²)", col, noiseBins, charts.AxisColor(a)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Infof("chart saved to %s", path)
	}
	return nil
}

// recordDisplacement stores the result against the latest calibration run,
// or against no run when the history is empty.
func recordDisplacement(ctx context.Context, path string, opts DisplacementOptions, final imu.Vec3) (calibrationID, id uuid.UUID, err error) {
	db, err := store.Open(path)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	defer db.Close()

	latest, err := db.LatestRun(ctx)
	switch {
	case errors.Is(err, store.ErrNoRuns):
		log.Warn("no calibration run recorded; displacement stored without one")
	case err != nil:
		return uuid.Nil, uuid.Nil, err
	default:
		calibrationID = latest.ID
	}

	id, err = db.SaveDisplacement(ctx, store.Displacement{
		CalibrationID: calibrationID,
		Recording:     opts.Apply,
		Tier:          opts.Tier.String(),
		Final:         final,
	})
	return calibrationID, id, err
}
