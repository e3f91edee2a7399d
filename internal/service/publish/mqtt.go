// Package publish forwards reading events to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"meterease/internal/config"
	"meterease/internal/model"
)

const publishTimeout = 5 * time.Second

// Publisher publishes reading events as JSON to {prefix}/readings.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the configured broker.
func New(cfg *config.Config) (*Publisher, error) {
	if cfg.MQTTBroker == "" {
		return nil, errors.New("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID("meterease-" + fmt.Sprint(time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return NewWithClient(client, cfg.MQTTTopicPrefix), nil
}

// NewWithClient wraps an already configured client.
func NewWithClient(client mqtt.Client, topicPrefix string) *Publisher {
	topicPrefix = strings.TrimRight(topicPrefix, "/")
	if topicPrefix == "" {
		topicPrefix = "meterease"
	}
	return &Publisher{client: client, topicPrefix: topicPrefix}
}

// Topic is where reading events are published.
func (p *Publisher) Topic() string {
	return p.topicPrefix + "/readings"
}

// Publish sends one event with QoS 1.
func (p *Publisher) Publish(event model.ReadingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	token := p.client.Publish(p.Topic(), 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", p.Topic())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.Topic(), err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
