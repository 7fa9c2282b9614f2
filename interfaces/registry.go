package interfaces

import "context"

// DeviceRegistry owns every Device record.
// Mutating operations persist the full registry before returning.
type DeviceRegistry interface {
	// Get returns the device registered under id, or ErrDeviceNotFound.
	Get(id DeviceID) (Device, error)

	// List returns all devices, most recently created first.
	List() []Device

	// Create validates and stores a new device. Fails with *ValidationError.
	Create(ctx context.Context, fields NewDevice) (Device, error)

	// Update merges a partial update over an existing device.
	// Fails with ErrDeviceNotFound or *ValidationError.
	Update(ctx context.Context, id DeviceID, update DeviceUpdate) (Device, error)

	// Delete removes a device and reports whether it existed.
	Delete(ctx context.Context, id DeviceID) (bool, error)

	// AutoRegister returns the device registered under id, creating a default
	// record first if none exists. Existing records are never modified.
	AutoRegister(ctx context.Context, id DeviceID) (Device, error)
}

// SettingsStore owns the singleton Settings record.
type SettingsStore interface {
	// Settings returns a copy of the current settings.
	Settings() Settings

	// UpdateSettings shallow-merges update into the current settings.
	UpdateSettings(ctx context.Context, update SettingsUpdate) (Settings, error)
}
