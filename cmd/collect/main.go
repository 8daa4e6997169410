// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
)

func main() {
	configPath := flag.String("config", "./accel_config.txt", "path to configuration file")
	posesOnly := flag.Bool("poses-only", false, "collect the six static poses but skip the test recording")
	recordOnly := flag.Bool("record-only", false, "skip the six static poses and only take the test recording")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	app.SetupLogging(cfg)
	log.Infof("starting accelerometer data collection (source %s)", cfg.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	prompt := func(msg string) error {
		fmt.Printf("\n%s, then press ENTER... ", msg)
		_, err := in.ReadString('\n')
		return err
	}

	opts := app.CollectOptions{SkipPoses: *recordOnly, SkipRecording: *posesOnly}
	if err := app.RunCollect(ctx, cfg, prompt, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
