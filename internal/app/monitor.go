// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/config"
)

// formatMessage renders one MQTT report as a console line.
func formatMessage(cfg *config.Config, topic string, payload []byte) (string, error) {
	switch topic {
	case cfg.TopicCalibration:
		var rep CalibrationReport
		if err := json.Unmarshal(payload, &rep); err != nil {
			return "", fmt.Errorf("calibration unmarshal: %w", err)
		}
		p := rep.Params
		var b strings.Builder
		fmt.Fprintf(&b, "[CAL ] run=%s weighted=%t bias=(%.5f, %.5f, %.5f) scale=(%.5f, %.5f, %.5f)",
			rep.RunID, rep.Weighted, p.Bias.X, p.Bias.Y, p.Bias.Z, p.Scale.X, p.Scale.Y, p.Scale.Z)
		for _, row := range p.Coupling {
			fmt.Fprintf(&b, "\n       [% .5f % .5f % .5f]", row[0], row[1], row[2])
		}
		return b.String(), nil

	case cfg.TopicDisplacement:
		var rep DisplacementReport
		if err := json.Unmarshal(payload, &rep); err != nil {
			return "", fmt.Errorf("displacement unmarshal: %w", err)
		}
		return fmt.Sprintf("[DISP] %s tier=%s final=(%.4f, %.4f, %.4f) m",
			rep.Recording, rep.Tier, rep.Final.X, rep.Final.Y, rep.Final.Z), nil

	case cfg.TopicCorrected:
		var s LiveSample
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", fmt.Errorf("sample unmarshal: %w", err)
		}
		return fmt.Sprintf("[ACC ] t=%8.3f ax=% .4f ay=% .4f az=% .4f  ROLL=%6.2f PITCH=%6.2f",
			s.T, s.Corrected.X, s.Corrected.Y, s.Corrected.Z, s.Tilt.Roll, s.Tilt.Pitch), nil
	}
	return "", fmt.Errorf("unexpected topic %q", topic)
}

// RunMonitor prints every report published by the other tools until ctx is done.
func RunMonitor(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-monitor")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Infof("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	var mu sync.Mutex
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatMessage(cfg, msg.Topic(), msg.Payload())
		if err != nil {
			log.Warnf("monitor: %v", err)
			return
		}
		mu.Lock()
		fmt.Fprintln(w, line)
		mu.Unlock()
	}

	for _, topic := range []string{cfg.TopicCalibration, cfg.TopicDisplacement, cfg.TopicCorrected} {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Infof("monitor: subscribed to %s", topic)
	}

	<-ctx.Done()
	return nil
}
