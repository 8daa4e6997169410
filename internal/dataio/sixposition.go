// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dataio

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// ReadSixPosition parses one header row followed by nine-column rows of
// true, mean and std per axis. The result is validated as a full set.
func ReadSixPosition(r io.Reader) (calibration.Positions, error) {
	cr := newReader(r)
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &errs.InputShapeError{Op: "six-position csv", Msg: "empty file"}
		}
		return nil, err
	}

	var ps calibration.Positions
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		v, err := parseRow("six-position csv", rec, len(SixPositionHeader), line)
		if err != nil {
			return nil, err
		}
		ps = append(ps, calibration.StaticPosition{
			Truth:  imu.Vec3{X: v[0], Y: v[3], Z: v[6]},
			Mean:   imu.Vec3{X: v[1], Y: v[4], Z: v[7]},
			StdDev: imu.Vec3{X: v[2], Y: v[5], Z: v[8]},
		})
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}

// WriteSixPosition writes the header and one row per position.
func WriteSixPosition(w io.Writer, ps calibration.Positions) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SixPositionHeader); err != nil {
		return err
	}
	for _, p := range ps {
		if err := cw.Write(formatFloats(
			p.Truth.X, p.Mean.X, p.StdDev.X,
			p.Truth.Y, p.Mean.Y, p.StdDev.Y,
			p.Truth.Z, p.Mean.Z, p.StdDev.Z,
		)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadSixPosition reads a six-position file.
func LoadSixPosition(path string) (calibration.Positions, error) {
	return readFile(path, ReadSixPosition)
}

// SaveSixPosition writes a six-position file, replacing any existing one.
func SaveSixPosition(path string, ps calibration.Positions) error {
	return writeFile(path, func(w io.Writer) error { return WriteSixPosition(w, ps) })
}
