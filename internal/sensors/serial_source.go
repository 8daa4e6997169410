// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// Serial reads accelerometer lines from a microcontroller streaming
// "ax,ay,az" or "t,ax,ay,az" in g. A leading device timestamp is dropped:
// samples are timestamped on arrival by the collector.
type Serial struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	name   string
}

// NewSerial opens portName at baud (8N1).
func NewSerial(portName string, baud uint) (*Serial, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial IMU: open %s: %w", portName, err)
	}
	log.Infof("serial IMU opened on %s at %d baud", portName, baud)
	return newSerial(port, portName), nil
}

func newSerial(rwc io.ReadWriteCloser, name string) *Serial {
	return &Serial{port: rwc, reader: bufio.NewReader(rwc), name: name}
}

// Next returns the next well-formed line. Blank and malformed lines (partial
// lines right after opening the port, boot banners) are skipped.
func (s *Serial) Next() (imu.Vec3, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			return imu.Vec3{}, fmt.Errorf("serial IMU %s: read: %w", s.name, err)
		}
		v, perr := parseLine(line)
		if perr == nil {
			return v, nil
		}
		log.Debugf("serial IMU %s: skipping line %q: %v", s.name, strings.TrimSpace(line), perr)
		if err != nil {
			return imu.Vec3{}, fmt.Errorf("serial IMU %s: read: %w", s.name, err)
		}
	}
}

// Close releases the port.
func (s *Serial) Close() error { return s.port.Close() }

func (s *Serial) String() string { return "serial(" + s.name + ")" }

func parseLine(line string) (imu.Vec3, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return imu.Vec3{}, fmt.Errorf("empty line")
	}
	fields := strings.Split(line, ",")
	switch len(fields) {
	case 3:
	case 4:
		fields = fields[1:]
	default:
		return imu.Vec3{}, fmt.Errorf("got %d fields, want 3 or 4", len(fields))
	}
	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return imu.Vec3{}, err
		}
		vals[i] = v
	}
	return imu.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
