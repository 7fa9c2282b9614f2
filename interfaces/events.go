package interfaces

import (
	"context"
	"time"
)

// EventType names a provisioning event.
type EventType string

const (
	EventDeviceAutoRegistered EventType = "device.auto_registered"
	EventDeviceCreated        EventType = "device.created"
	EventDeviceUpdated        EventType = "device.updated"
	EventDeviceDeleted        EventType = "device.deleted"
	EventSettingsUpdated      EventType = "settings.updated"
	EventArtifactServed       EventType = "artifact.served"
)

// Event is a notification about a change or a served provisioning artifact.
type Event struct {
	Type     EventType `json:"type"`
	DeviceID DeviceID  `json:"deviceId,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Time     time.Time `json:"time"`
}

// EventPublisher delivers events to an external sink.
// Publishing is best effort, callers log errors and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
