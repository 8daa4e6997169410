// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dataio

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/relabs-tech/accel_calibration/internal/errs"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

const maxHeaderRows = 2

// ReadRecording parses timestamp,x,y,z rows. Up to two leading non-numeric
// rows are treated as headers; when there are two, or the only one has a
// single field, the first is taken as the recording title.
func ReadRecording(r io.Reader) (imu.Recording, error) {
	cr := newReader(r)
	var (
		rec     imu.Recording
		headers [][]string
	)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imu.Recording{}, err
		}
		if len(rec.Samples) == 0 && !isNumeric(row) && len(headers) < maxHeaderRows {
			headers = append(headers, row)
			continue
		}
		v, err := parseRow("recording csv", row, len(RecordingHeader), line)
		if err != nil {
			return imu.Recording{}, err
		}
		rec.Samples = append(rec.Samples, imu.Sample{T: v[0], Accel: imu.Vec3{X: v[1], Y: v[2], Z: v[3]}})
	}
	if len(headers) == 2 || (len(headers) == 1 && len(headers[0]) == 1) {
		rec.Title = strings.TrimSpace(strings.Join(headers[0], ","))
	}
	if len(rec.Samples) == 0 {
		return imu.Recording{}, &errs.InputShapeError{Op: "recording csv", Msg: "no samples"}
	}
	if err := rec.Validate(); err != nil {
		return imu.Recording{}, err
	}
	return rec, nil
}

// RecordingWriter streams samples to CSV as they are produced.
type RecordingWriter struct {
	cw *csv.Writer
}

// NewRecordingWriter writes the title (if any) and the column header.
func NewRecordingWriter(w io.Writer, title string) (*RecordingWriter, error) {
	cw := csv.NewWriter(w)
	if title != "" {
		if err := cw.Write([]string{title}); err != nil {
			return nil, err
		}
	}
	if err := cw.Write(RecordingHeader); err != nil {
		return nil, err
	}
	return &RecordingWriter{cw: cw}, nil
}

// Write appends one sample.
func (rw *RecordingWriter) Write(s imu.Sample) error {
	return rw.cw.Write(formatFloats(s.T, s.Accel.X, s.Accel.Y, s.Accel.Z))
}

// Flush pushes buffered rows to the underlying writer.
func (rw *RecordingWriter) Flush() error {
	rw.cw.Flush()
	return rw.cw.Error()
}

// WriteRecording writes a whole recording.
func WriteRecording(w io.Writer, rec imu.Recording) error {
	rw, err := NewRecordingWriter(w, rec.Title)
	if err != nil {
		return err
	}
	for _, s := range rec.Samples {
		if err := rw.Write(s); err != nil {
			return err
		}
	}
	return rw.Flush()
}

// LoadRecording reads a recording file.
func LoadRecording(path string) (imu.Recording, error) {
	return readFile(path, ReadRecording)
}

// SaveRecording writes a recording file, replacing any existing one.
func SaveRecording(path string, rec imu.Recording) error {
	return writeFile(path, func(w io.Writer) error { return WriteRecording(w, rec) })
}
