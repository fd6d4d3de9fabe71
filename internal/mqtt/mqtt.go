// Package mqtt mirrors control loop events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/eventbus"
)

const publishTimeout = 2 * time.Second

// Client is the part of a paho client the publisher uses
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// message is the wire form of a mirrored event
type message struct {
	Type     string         `json:"type"`
	Time     time.Time      `json:"time"`
	DeviceID string         `json:"device_id"`
	Data     map[string]any `json:"data,omitempty"`
}

// Publisher forwards bus events to {prefix}/events/{type}.
type Publisher struct {
	client   Client
	prefix   string
	qos      byte
	deviceID string
}

// Connect dials the broker, retrying up to cfg.MaxRetries times.
func Connect(cfg config.MQTTConfig, deviceID string) (*Publisher, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	retryInterval := cfg.RetryInterval.Duration()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		client := paho.NewClient(opts)
		token := client.Connect()
		if token.WaitTimeout(retryInterval) && token.Error() == nil {
			log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
			return New(client, cfg.TopicPrefix, cfg.QoS, deviceID), nil
		}
		lastErr = token.Error()
		if lastErr == nil {
			lastErr = fmt.Errorf("timed out after %s", retryInterval)
		}
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_retries", cfg.MaxRetries).
			Msg("Failed to connect to MQTT broker")
		if attempt < cfg.MaxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, lastErr)
}

// New creates a publisher over an already connected client
func New(client Client, prefix string, qos byte, deviceID string) *Publisher {
	return &Publisher{client: client, prefix: prefix, qos: qos, deviceID: deviceID}
}

// Topic returns the topic an event type is published to
func (p *Publisher) Topic(t eventbus.EventType) string {
	return p.prefix + "/events/" + string(t)
}

// Handle is an eventbus.Handler publishing every event it receives
func (p *Publisher) Handle(e eventbus.Event) {
	topic := p.Topic(e.Type)
	if !p.client.IsConnected() {
		log.Debug().Str("topic", topic).Msg("MQTT not connected, dropping event")
		return
	}

	payload, err := json.Marshal(message{
		Type:     string(e.Type),
		Time:     e.Time.UTC(),
		DeviceID: p.deviceID,
		Data:     e.Data,
	})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to encode MQTT event")
		return
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish MQTT event")
		return
	}
	log.Debug().Str("topic", topic).Msg("Published MQTT event")
}

// Close disconnects from the broker, waiting briefly for in-flight messages
func (p *Publisher) Close() {
	if c, ok := p.client.(interface{ Disconnect(quiesce uint) }); ok && p.client.IsConnected() {
		log.Info().Msg("Disconnecting from MQTT broker")
		c.Disconnect(250)
	}
}
