// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
)

func main() {
	configPath := flag.String("config", "./accel_config.txt", "path to configuration file")
	input := flag.String("input", "", "six-position CSV (overrides SIX_POSITION_CSV)")
	output := flag.String("output", "", "parameter CSV (overrides PARAMS_CSV)")
	unweighted := flag.Bool("unweighted", false, "ignore the per-pose standard deviations")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	app.SetupLogging(cfg)

	if *input != "" {
		cfg.SixPositionCSV = *input
	}
	if *output != "" {
		cfg.ParamsCSV = *output
	}
	if *unweighted {
		cfg.WeightedFit = false
	}

	log.Infof("calibrating from %s", cfg.SixPositionCSV)
	if _, err := app.RunCalibrate(context.Background(), cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
