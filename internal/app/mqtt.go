// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/config"
)

// Publisher sends JSON reports to the MQTT broker. A Publisher with no
// client (MQTT_BROKER unset) drops everything, so callers never branch.
type Publisher struct {
	client mqtt.Client
}

// NewPublisher connects to cfg.MQTTBroker. suffix is appended to the client
// ID so several tools can share one broker.
func NewPublisher(cfg *config.Config, suffix string) (*Publisher, error) {
	if cfg.MQTTBroker == "" {
		log.Debug("MQTT_BROKER not set, reports will not be published")
		return &Publisher{}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-" + suffix)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)
	return &Publisher{client: client}, nil
}

// Enabled reports whether messages actually go anywhere.
func (p *Publisher) Enabled() bool { return p != nil && p.client != nil }

// PublishJSON marshals v and publishes it retained at QoS 0.
func (p *Publisher) PublishJSON(topic string, v any) error {
	if !p.Enabled() || topic == "" {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, token.Error())
	}
	return nil
}

// Close disconnects, waiting up to 250 ms for in-flight messages.
func (p *Publisher) Close() {
	if p.Enabled() {
		p.client.Disconnect(250)
	}
}
