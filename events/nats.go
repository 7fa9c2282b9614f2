package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// NATSPublisher publishes events as core NATS messages.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

var _ interfaces.EventPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the server at natsURL.
func NewNATSPublisher(natsURL, subjectPrefix string, log *slog.Logger, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{
		nats.Name("sip-provisioning-events"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", slog.String("url", nc.ConnectedUrlRedacted()))
		}),
	}, opts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{
		nc:     nc,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		log:    log,
	}, nil
}

// Subject returns the subject events of eventType are published to.
func (p *NATSPublisher) Subject(eventType interfaces.EventType) string {
	return subjectFor(p.prefix, eventType)
}

func subjectFor(prefix string, eventType interfaces.EventType) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

// Publish sends event. Delivery is at most once.
func (p *NATSPublisher) Publish(ctx context.Context, event interfaces.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.nc.Publish(p.Subject(event.Type), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
