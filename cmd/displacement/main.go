// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

func main() {
	configPath := flag.String("config", "./accel_config.txt", "path to configuration file")
	recording := flag.String("recording", "", "recording used to fit the drift (overrides RECORDING_CSV)")
	apply := flag.String("apply", "", "recording the fitted drift is removed from (default: the fitted one)")
	limit := flag.Float64("limit", 0, "use only the first N seconds of each recording (0 = all)")
	tier := flag.Int("tier", int(model.TierMisalignment), "correction model: 1 bias, 2 scale, 3 misalignment")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	app.SetupLogging(cfg)

	if model.Tier(*tier).NumParams() == 0 {
		log.Fatalf("invalid -tier %d", *tier)
	}

	res, err := app.RunDisplacement(context.Background(), cfg, app.DisplacementOptions{
		Recording: *recording,
		Apply:     *apply,
		Limit:     *limit,
		Tier:      model.Tier(*tier),
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := app.PrintSummary(os.Stdout, res.Tiers); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
