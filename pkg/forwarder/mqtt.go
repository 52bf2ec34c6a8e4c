package forwarder

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
)

// MQTTForwarder publishes readings as JSON to {topicPrefix}/{device}.
type MQTTForwarder struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

func NewMQTTForwarder(broker, topicPrefix, deviceID string, timeout time.Duration) *MQTTForwarder {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("weather_telemetry-" + deviceID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(timeout)

	return &MQTTForwarder{
		client:  mqtt.NewClient(opts),
		topic:   Topic(topicPrefix, deviceID),
		timeout: timeout,
	}
}

func Topic(prefix, deviceID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return deviceID
	}
	return prefix + "/" + deviceID
}

// Connect starts the client. With connect retry enabled paho keeps trying in
// the background, so a broker that is down only delays the first publish.
func (f *MQTTForwarder) Connect() error {
	token := f.client.Connect()
	if !token.WaitTimeout(f.timeout) {
		return nil
	}
	return token.Error()
}

func (f *MQTTForwarder) Name() string {
	return "mqtt " + f.topic
}

func (f *MQTTForwarder) Forward(ctx context.Context, reading *types.Reading) error {
	if !f.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := encode(reading)
	if err != nil {
		return err
	}

	token := f.client.Publish(f.topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.timeout):
		return fmt.Errorf("publish to %s timed out", f.topic)
	}
}

func (f *MQTTForwarder) Close() {
	f.client.Disconnect(250)
}
