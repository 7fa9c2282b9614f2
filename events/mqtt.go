package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
	mqttMaxQoS            = 2
)

var (
	// ErrNotConnected is returned when publishing while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrPublishTimeout is returned when the broker does not acknowledge in time.
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883 or ssl://broker:8883.
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MQTTPublisher publishes events to an MQTT broker.
type MQTTPublisher struct {
	client pahomqtt.Client
	prefix string
	qos    byte
	log    *slog.Logger
}

var _ interfaces.EventPublisher = (*MQTTPublisher)(nil)

// NewMQTTPublisher connects to the broker and returns a publisher.
// The client reconnects automatically after the initial connection.
func NewMQTTPublisher(opts MQTTOptions, log *slog.Logger) (*MQTTPublisher, error) {
	if opts.QoS > mqttMaxQoS {
		return nil, fmt.Errorf("invalid mqtt qos %d", opts.QoS)
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warn("MQTT connection lost", "err", err)
		}).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			log.Info("MQTT connected", slog.String("broker", opts.Broker))
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := pahomqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %v", opts.Broker, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}

	return newMQTTPublisher(client, opts.TopicPrefix, opts.QoS, log), nil
}

func newMQTTPublisher(client pahomqtt.Client, prefix string, qos byte, log *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
		log:    log,
	}
}

// Topic returns the topic events of eventType are published to.
func (p *MQTTPublisher) Topic(eventType interfaces.EventType) string {
	if p.prefix == "" {
		return string(eventType)
	}
	return p.prefix + "/" + string(eventType)
}

// Publish sends event and waits for the broker acknowledgment.
func (p *MQTTPublisher) Publish(ctx context.Context, event interfaces.Event) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(event.Type), p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", event.Type, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}
