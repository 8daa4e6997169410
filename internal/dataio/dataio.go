// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dataio reads and writes the three CSV layouts the tools exchange:
// six-position summaries, timestamped recordings and fitted parameters.
package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/accel_calibration/internal/errs"
)

// Column layouts. Readers match on position, not on header text.
var (
	SixPositionHeader = []string{
		"x_true (g)", "x_mean (g)", "x_std",
		"y_true (g)", "y_mean (g)", "y_std",
		"z_true (g)", "z_mean (g)", "z_std",
	}
	RecordingHeader = []string{"time (s)", "x (g)", "y (g)", "z (g)"}
	ParamsHeader    = []string{
		"b_x", "b_y", "b_z",
		"Sxx", "Sxy", "Sxz",
		"Syx", "Syy", "Syz",
		"Szx", "Szy", "Szz",
	}
)

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr
}

// parseRow converts every field of a data row. line is 1-based for messages.
func parseRow(op string, rec []string, want, line int) ([]float64, error) {
	if want > 0 && len(rec) != want {
		return nil, &errs.InputShapeError{Op: op, Msg: fmt.Sprintf("line %d: got %d columns, want %d", line, len(rec), want)}
	}
	out := make([]float64, len(rec))
	for i, f := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &errs.InputShapeError{Op: op, Msg: fmt.Sprintf("line %d column %d: %q is not a number", line, i+1, f)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &errs.InputShapeError{Op: op, Msg: fmt.Sprintf("line %d column %d: %q is not finite", line, i+1, f)}
		}
		out[i] = v
	}
	return out, nil
}

func isNumeric(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err == nil
}

func formatFloats(vs ...float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
