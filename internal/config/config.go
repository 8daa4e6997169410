// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// Sample sources.
const (
	SourceMPU9250 = "mpu9250"
	SourceSerial  = "serial"
	SourceMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string

	// Acquisition
	Source         string
	IMUSPIDevice   string
	IMUCSPin       string
	IMUAccelRange  byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	SerialPort     string
	SerialBaudRate uint

	// Timing
	SampleIntervalMS  int // milliseconds, 0 polls as fast as the source answers
	PoseDurationSec   float64
	RecordDurationSec float64

	// Files
	SixPositionCSV string
	RecordingCSV   string
	ParamsCSV      string
	PlotDir        string // empty disables figures
	DBPath         string // empty disables run history

	// Processing
	Gravity       float64 // m/s² per g
	VerticalAxis  imu.Axis
	RemoveGravity bool
	WeightedFit   bool
	MaxIterations int // 0 selects the solver default

	// MQTT (empty broker disables publishing)
	MQTTBroker        string
	MQTTClientID      string
	TopicCalibration  string
	TopicDisplacement string
	TopicCorrected    string

	// Web Server
	WebServerPort int
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		Source:            SourceMock,
		IMUSPIDevice:      "/dev/spidev0.0",
		IMUCSPin:          "GPIO8",
		SerialPort:        "/dev/ttyUSB0",
		SerialBaudRate:    115200,
		SampleIntervalMS:  5,
		PoseDurationSec:   30,
		RecordDurationSec: 60,
		SixPositionCSV:    "six_position_data.csv",
		RecordingCSV:      "six_position_test_data.csv",
		ParamsCSV:         "optim_params.csv",
		PlotDir:           "plots",
		DBPath:            "calibration.db",
		Gravity:           9.797,
		VerticalAxis:      imu.Z,
		RemoveGravity:     true,
		WeightedFit:       true,
		MQTTClientID:      "accel-calibration",
		TopicCalibration:  "accel/calibration",
		TopicDisplacement: "accel/displacement",
		TopicCorrected:    "accel/corrected",
		WebServerPort:     8080,
	}
}

// SampleInterval is the polling period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// PoseDuration is how long each static pose is recorded.
func (c *Config) PoseDuration() time.Duration {
	return time.Duration(c.PoseDurationSec * float64(time.Second))
}

// RecordDuration is the length of a test recording.
func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.RecordDurationSec * float64(time.Second))
}

// Package-level singleton: InitGlobal sets it once, Get reads it under a
// read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default(). Blank lines and lines
// starting with # are ignored; unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "LOG_LEVEL":
		c.LogLevel = value

	// Acquisition
	case "SOURCE":
		c.Source = strings.ToLower(value)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		r, perr := strconv.ParseUint(value, 10, 8)
		if perr != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, perr)
		}
		c.IMUAccelRange = byte(r)
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		baud, perr := strconv.ParseUint(value, 10, 32)
		if perr != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, perr)
		}
		c.SerialBaudRate = uint(baud)

	// Timing
	case "SAMPLE_INTERVAL_MS":
		c.SampleIntervalMS, err = parseInt(key, value)
	case "POSE_DURATION_SEC":
		c.PoseDurationSec, err = parseFloat(key, value)
	case "RECORD_DURATION_SEC":
		c.RecordDurationSec, err = parseFloat(key, value)

	// Files
	case "SIX_POSITION_CSV":
		c.SixPositionCSV = value
	case "RECORDING_CSV":
		c.RecordingCSV = value
	case "PARAMS_CSV":
		c.ParamsCSV = value
	case "PLOT_DIR":
		c.PlotDir = value
	case "DB_PATH":
		c.DBPath = value

	// Processing
	case "GRAVITY":
		c.Gravity, err = parseFloat(key, value)
	case "VERTICAL_AXIS":
		a, perr := imu.ParseAxis(value)
		if perr != nil {
			return fmt.Errorf("invalid VERTICAL_AXIS: %w", perr)
		}
		c.VerticalAxis = a
	case "REMOVE_GRAVITY":
		c.RemoveGravity, err = parseBool(key, value)
	case "WEIGHTED_FIT":
		c.WeightedFit, err = parseBool(key, value)
	case "MAX_ITERATIONS":
		c.MaxIterations, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value
	case "TOPIC_DISPLACEMENT":
		c.TopicDisplacement = value
	case "TOPIC_CORRECTED":
		c.TopicCorrected = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks that the values are usable together.
func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.Source {
	case SourceMPU9250:
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required for SOURCE=%s", c.Source)
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SOURCE=%s", c.Source)
		}
		if c.SerialBaudRate == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required for SOURCE=%s", c.Source)
		}
	case SourceMock:
	default:
		return fmt.Errorf("SOURCE must be %s, %s or %s, got %q", SourceMPU9250, SourceSerial, SourceMock, c.Source)
	}
	if c.IMUAccelRange > 3 {
		return fmt.Errorf("IMU_ACCEL_RANGE must be 0..3, got %d", c.IMUAccelRange)
	}
	if c.SampleIntervalMS < 0 {
		return fmt.Errorf("SAMPLE_INTERVAL_MS must not be negative")
	}
	if c.PoseDurationSec <= 0 || c.RecordDurationSec <= 0 {
		return fmt.Errorf("POSE_DURATION_SEC and RECORD_DURATION_SEC must be positive")
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("GRAVITY must be positive, got %g", c.Gravity)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("MAX_ITERATIONS must not be negative")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	return nil
}

// InitGlobal loads the global configuration from file. Only the first call
// has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
