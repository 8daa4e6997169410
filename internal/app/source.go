// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

// posable is implemented by sources whose orientation can be set from
// software (the mock).
type posable interface {
	SetTruth(imu.Vec3)
}

// OpenSource opens the sample source selected by SOURCE. The returned close
// function is always safe to call.
func OpenSource(cfg *config.Config) (imu.Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Source {
	case config.SourceMPU9250:
		s, err := sensors.NewMPU9250(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.SourceSerial:
		s, err := sensors.NewSerial(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.SourceMock:
		log.Info("using mock accelerometer source")
		return sensors.NewMock(sensors.DefaultMock), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
