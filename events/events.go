package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// Encode returns the JSON payload of event.
func Encode(event interfaces.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	return payload, nil
}

// Multi publishes every event to all of its publishers.
type Multi []interfaces.EventPublisher

var _ interfaces.EventPublisher = Multi(nil)

// Publish sends event to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, event interfaces.Event) error {
	var errs []error
	for _, publisher := range m {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, publisher := range m {
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

var _ interfaces.EventPublisher = Nop{}

func (Nop) Publish(context.Context, interfaces.Event) error { return nil }
func (Nop) Close() error                                    { return nil }
