// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/integrate"
	"github.com/relabs-tech/accel_calibration/internal/model"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

// TierSummary describes one recording after correction with one tier.
type TierSummary struct {
	Name  string   `json:"name"`
	Mean  imu.Vec3 `json:"mean"`  // m/s²
	Std   imu.Vec3 `json:"std"`   // m/s²
	Final imu.Vec3 `json:"final"` // displacement at the last sample, m
}

// Summarize corrects rec with no model and with each tier, converts to
// physical units, and reports statistics plus the final double-integrated
// displacement. The first entry is the raw recording.
func Summarize(rec imu.Recording, set calibration.ParameterSet, p Physical) ([]TierSummary, error) {
	variants := []struct {
		name string
		tier model.Tier
	}{
		{"raw", 0},
		{model.TierBias.String(), model.TierBias},
		{model.TierScale.String(), model.TierScale},
		{model.TierMisalignment.String(), model.TierMisalignment},
	}

	out := make([]TierSummary, 0, len(variants))
	for _, v := range variants {
		r := rec
		if v.tier != 0 {
			var err error
			if r, err = set.CorrectRecording(v.tier, rec); err != nil {
				return nil, fmt.Errorf("%s correction: %w", v.name, err)
			}
		}
		r = RecordingToPhysical(r, p)
		disp, err := integrate.Recording(r)
		if err != nil {
			return nil, fmt.Errorf("%s integration: %w", v.name, err)
		}
		mean, std := sensors.Summarize(r.Accels())
		out = append(out, TierSummary{Name: v.name, Mean: mean, Std: std, Final: finalOf(disp)})
	}
	return out, nil
}

func finalOf(disp [3][]float64) imu.Vec3 {
	var v imu.Vec3
	for _, a := range imu.Axes {
		if n := len(disp[a]); n > 0 {
			v = v.With(a, disp[a][n-1])
		}
	}
	return v
}

// PrintSummary writes the comparison as an aligned table.
func PrintSummary(w io.Writer, rows []TierSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "model\tmean x\tmean y\tmean z\tstd x\tstd y\tstd z\tdisp x (m)\tdisp y (m)\tdisp z (m)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.4f\t%.4f\t%.4f\n",
			r.Name, r.Mean.X, r.Mean.Y, r.Mean.Z, r.Std.X, r.Std.Y, r.Std.Z, r.Final.X, r.Final.Y, r.Final.Z)
	}
	return tw.Flush()
}
