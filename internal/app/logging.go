// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/config"
)

// SetupLogging applies LOG_LEVEL to the standard logrus logger.
func SetupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, log.GetLevel())
		return
	}
	log.SetLevel(level)
}
