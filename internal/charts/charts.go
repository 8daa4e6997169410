// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package charts renders calibration and displacement figures to image files.
// The format follows the file extension (png, svg, pdf).
package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/drift"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

var axisColors = [3]color.Color{
	color.RGBA{R: 220, G: 40, B: 40, A: 255},
	color.RGBA{R: 40, G: 80, B: 220, A: 255},
	color.RGBA{R: 30, G: 160, B: 60, A: 255},
}

// AxisColor is the colour used for axis a in every figure.
func AxisColor(a imu.Axis) color.Color { return axisColors[a] }

const (
	width  = 14 * vg.Inch
	height = 6 * vg.Inch
)

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func series(t, v []float64) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i] = plotter.XY{X: t[i], Y: v[i]}
	}
	return pts
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color, dashed bool) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	if dashed {
		l.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	}
	p.Add(l)
	if label != "" {
		p.Legend.Add(label, l)
	}
	return nil
}

func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func checkLens(t []float64, vs [3][]float64) error {
	for _, a := range imu.Axes {
		if len(vs[a]) != len(t) {
			return fmt.Errorf("axis %s has %d points for %d timestamps", a, len(vs[a]), len(t))
		}
	}
	return nil
}

// SaveAxes plots one line per axis against time.
func SaveAxes(path, title, yLabel string, t []float64, vs [3][]float64) error {
	if err := checkLens(t, vs); err != nil {
		return err
	}
	p := newPlot(title, "Time (s)", yLabel)
	for _, a := range imu.Axes {
		if err := addLine(p, a.String(), series(t, vs[a]), axisColors[a], false); err != nil {
			return err
		}
	}
	return save(p, path)
}

// SaveSixPosition scatters each axis's measured means against the true
// value and overlays the fitted tier-3 response along that axis.
func SaveSixPosition(path string, ps calibration.Positions, set calibration.ParameterSet) error {
	if set.Misalignment.Coupling == nil {
		return fmt.Errorf("six-position chart: no tier 3 parameters")
	}
	p := newPlot("Six-position calibration", "True acceleration (g)", "Measured acceleration (g)")
	for _, a := range imu.Axes {
		pts := make(plotter.XYs, 0, len(ps))
		for _, pos := range ps {
			pts = append(pts, plotter.XY{X: pos.Truth.Get(a), Y: pos.Mean.Get(a)})
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = axisColors[a]
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(a.String(), sc)

		b := set.Misalignment.Bias.Get(a)
		s := set.Misalignment.Coupling.At(int(a), int(a))
		fitted := plotter.XYs{{X: -1, Y: b - s}, {X: 1, Y: b + s}}
		if err := addLine(p, "", fitted, axisColors[a], false); err != nil {
			return err
		}
	}
	return save(p, path)
}

// SaveDriftFit plots integrated displacement per axis with its fitted drift
// polynomial dashed on top.
func SaveDriftFit(path, title string, t []float64, disp [3][]float64, models drift.Models) error {
	if err := checkLens(t, disp); err != nil {
		return err
	}
	p := newPlot(title, "Time (s)", "Displacement (m)")
	for _, a := range imu.Axes {
		if err := addLine(p, a.String(), series(t, disp[a]), axisColors[a], false); err != nil {
			return err
		}
		if err := addLine(p, a.String()+" drift", series(t, models[a].Series(t)), axisColors[a], true); err != nil {
			return err
		}
	}
	return save(p, path)
}

// SaveHistogram writes a density-normalised histogram of values.
func SaveHistogram(path, title, xLabel string, values []float64, bins int, c color.Color) error {
	if len(values) == 0 {
		return fmt.Errorf("histogram %q: no values", title)
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	h.Normalize(1)
	h.FillColor = c
	h.LineStyle.Width = vg.Points(0.5)

	p := newPlot(title, xLabel, "Density")
	p.Add(h)
	return save(p, path)
}
