// Package publisher fans accepted readings out to subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"CapIot.webnode/internal/models"
)

// Publisher is notified of every reading after it has been stored.
type Publisher interface {
	Publish(ctx context.Context, r models.Reading) error
	Close()
}

// Nop discards readings. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.Reading) error { return nil }
func (Nop) Close() {}

const (
	connectTimeout      = 10 * time.Second
	disconnectQuiesceMs = 250
)

// ErrNotConnected is returned by Publish while the client is reconnecting.
var ErrNotConnected = errors.New("mqtt client not connected")

// MQTTPublisher publishes each reading as JSON on a fixed topic, QoS 0.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewMQTTPublisher connects to broker. The client reconnects on its own after
// a successful first connection.
func NewMQTTPublisher(broker, clientID, topic string, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return newMQTTPublisher(client, topic, logger), nil
}

func newMQTTPublisher(client mqtt.Client, topic string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, logger: logger}
}

// Publish sends r and waits for the client to hand it off, or for ctx to end.
func (p *MQTTPublisher) Publish(ctx context.Context, r models.Reading) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("Reading published", "topic", p.topic, "id", r.ID)
	return nil
}

// Close disconnects, giving in-flight messages a short grace period.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
