// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// DefaultParamsTitle is written when the caller gives no title.
const DefaultParamsTitle = "Accelerometer Model Parameters Optimized"

// WriteParams writes a title row, the column names, then one row per tier:
// 3 biases; 3 biases and 3 scales; 3 biases and the row-major coupling matrix.
func WriteParams(w io.Writer, title string, set calibration.ParameterSet) error {
	if set.Misalignment.Coupling == nil {
		return &errs.InputShapeError{Op: "params csv", Msg: "tier 3 parameters missing"}
	}
	if title == "" {
		title = DefaultParamsTitle
	}
	b1, b2, b3 := set.Bias.Bias, set.Scale.Bias, set.Misalignment.Bias
	s2 := set.Scale.Scale

	cw := csv.NewWriter(w)
	rows := [][]string{
		{title},
		ParamsHeader,
		formatFloats(b1.X, b1.Y, b1.Z),
		formatFloats(b2.X, b2.Y, b2.Z, s2.X, s2.Y, s2.Z),
		formatFloats(append([]float64{b3.X, b3.Y, b3.Z}, set.Misalignment.Rows()...)...),
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// ReadParams parses a file produced by WriteParams. The per-axis fit
// results are not stored, so Fits is left empty.
func ReadParams(r io.Reader) (calibration.ParameterSet, error) {
	cr := newReader(r)
	for i := 0; i < 2; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return calibration.ParameterSet{}, &errs.InputShapeError{Op: "params csv", Msg: "missing header rows"}
			}
			return calibration.ParameterSet{}, err
		}
	}

	var tiers [3][]float64
	for i, want := range [3]int{3, 6, 12} {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return calibration.ParameterSet{}, &errs.InputShapeError{Op: "params csv", Msg: fmt.Sprintf("missing tier %d row", i+1)}
		}
		if err != nil {
			return calibration.ParameterSet{}, err
		}
		if tiers[i], err = parseRow("params csv", rec, want, i+3); err != nil {
			return calibration.ParameterSet{}, err
		}
	}
	if _, err := cr.Read(); !errors.Is(err, io.EOF) {
		return calibration.ParameterSet{}, &errs.InputShapeError{Op: "params csv", Msg: "unexpected rows after tier 3"}
	}

	vec := func(v []float64) imu.Vec3 { return imu.Vec3{X: v[0], Y: v[1], Z: v[2]} }
	var set calibration.ParameterSet
	set.Bias.Bias = vec(tiers[0])
	set.Scale.Bias = vec(tiers[1])
	set.Scale.Scale = vec(tiers[1][3:])
	mp, err := calibration.NewMisalignmentParams(vec(tiers[2]), tiers[2][3:])
	if err != nil {
		return calibration.ParameterSet{}, err
	}
	set.Misalignment = mp
	return set, nil
}

// LoadParams reads a parameter file.
func LoadParams(path string) (calibration.ParameterSet, error) {
	return readFile(path, ReadParams)
}

// SaveParams writes a parameter file, replacing any existing one.
func SaveParams(path, title string, set calibration.ParameterSet) error {
	return writeFile(path, func(w io.Writer) error { return WriteParams(w, title, set) })
}
