// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// accelRanges maps the register value to the full-scale range in g.
var accelRanges = []int{2, 4, 8, 16}

// CountsPerG returns the accelerometer sensitivity for a range register value
// (16384 LSB/g at ±2g, halving for every step up).
func CountsPerG(accelRange byte) float64 {
	return float64(int(16384) >> accelRange)
}

// MPU9250 reads the accelerometer of an MPU9250 on an SPI bus. The device's
// own bias registers are left alone so the fitted models see raw output.
type MPU9250 struct {
	dev      *mpu9250.MPU9250
	perG     float64
	spiDev   string
	csPin    string
	rangeReg byte
}

// NewMPU9250 initialises the sensor on spiDev with chip select csPin.
// accelRange is the register value 0..3 for ±2, ±4, ±8 or ±16 g.
func NewMPU9250(spiDev, csPin string, accelRange byte) (*MPU9250, error) {
	if int(accelRange) >= len(accelRanges) {
		return nil, fmt.Errorf("MPU9250: accel range %d out of range 0..3", accelRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("MPU9250: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("MPU9250: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("MPU9250: SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("MPU9250: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("MPU9250: initialization: %w", err)
	}
	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("MPU9250: set accel range: %w", err)
	}
	log.Infof("MPU9250 on %s (CS %s): accelerometer range ±%dg", spiDev, csPin, accelRanges[accelRange])

	return &MPU9250{
		dev:      dev,
		perG:     CountsPerG(accelRange),
		spiDev:   spiDev,
		csPin:    csPin,
		rangeReg: accelRange,
	}, nil
}

// Next reads one accelerometer sample in g.
func (s *MPU9250) Next() (imu.Vec3, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.Vec3{}, fmt.Errorf("MPU9250 accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.Vec3{}, fmt.Errorf("MPU9250 accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.Vec3{}, fmt.Errorf("MPU9250 accel Z: %w", err)
	}
	return imu.Vec3{
		X: float64(ax) / s.perG,
		Y: float64(ay) / s.perG,
		Z: float64(az) / s.perG,
	}, nil
}

func (s *MPU9250) String() string {
	return fmt.Sprintf("mpu9250(%s, cs=%s, ±%dg)", s.spiDev, s.csPin, accelRanges[s.rangeReg])
}
