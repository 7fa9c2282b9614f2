package registry

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// Get returns the device registered under id.
func (s *Store) Get(id interfaces.DeviceID) (interfaces.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[id]
	if !ok {
		return interfaces.Device{}, interfaces.ErrDeviceNotFound
	}
	return device, nil
}

// List returns all devices, most recently created first.
func (s *Store) List() []interfaces.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) listLocked() []interfaces.Device {
	devices := make([]interfaces.Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, device)
	}
	slices.SortFunc(devices, func(a, b interfaces.Device) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return devices
}

// validateNewDevice checks required fields first, then the address, then the model.
func validateNewDevice(fields interfaces.NewDevice) (interfaces.DeviceID, error) {
	required := []struct {
		name  string
		value string
	}{
		{"mac", fields.MAC},
		{"model", string(fields.Model)},
		{"sipServer", fields.SIPServer},
		{"sipUser", fields.SIPUser},
		{"sipPassword", fields.SIPPassword},
		{"displayName", fields.DisplayName},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return "", interfaces.NewMissingFieldError(field.name)
		}
	}

	id := interfaces.NormalizeMAC(fields.MAC)
	if !id.Valid() {
		return "", &interfaces.ValidationError{Field: "mac", Reason: "must contain exactly 12 hex digits"}
	}

	if err := validateModel(fields.Model); err != nil {
		return "", err
	}
	if err := validatePassword(fields.SIPPassword); err != nil {
		return "", err
	}
	return id, nil
}

// validatePassword rejects passwords that would be read back as sealed
// credentials when the snapshot is reopened.
func validatePassword(password string) error {
	if cryptoutils.IsSealed(password) {
		return &interfaces.ValidationError{Field: "sipPassword", Reason: fmt.Sprintf("must not start with %q", cryptoutils.SealedPrefix)}
	}
	return nil
}

func validateModel(model interfaces.PhoneModel) error {
	if !model.Valid() {
		return &interfaces.ValidationError{Field: "model", Reason: fmt.Sprintf("unsupported phone model %q", model)}
	}
	return nil
}

// Create validates fields and stores a new device, replacing any device with
// the same identity.
func (s *Store) Create(ctx context.Context, fields interfaces.NewDevice) (interfaces.Device, error) {
	id, err := validateNewDevice(fields)
	if err != nil {
		return interfaces.Device{}, err
	}

	s.mu.Lock()
	device := interfaces.Device{
		ID:          id,
		Model:       fields.Model,
		Label:       fields.Label,
		SIPServer:   fields.SIPServer,
		SIPUser:     fields.SIPUser,
		SIPPassword: fields.SIPPassword,
		DisplayName: fields.DisplayName,
		CreatedAt:   s.now(),
	}
	s.devices[id] = device
	err = s.persistLocked(ctx, "create device")
	s.mu.Unlock()

	if err != nil {
		return interfaces.Device{}, err
	}

	s.log.Info("Device created", slog.String("deviceID", id.String()), slog.String("model", string(device.Model)))
	s.publish(ctx, interfaces.EventDeviceCreated, id)
	return device, nil
}

// Update merges update over the device registered under id.
// Identity and creation time are never changed; an absent or empty password
// keeps the stored one.
func (s *Store) Update(ctx context.Context, id interfaces.DeviceID, update interfaces.DeviceUpdate) (interfaces.Device, error) {
	if update.Model != nil {
		if err := validateModel(*update.Model); err != nil {
			return interfaces.Device{}, err
		}
	}
	if update.SIPPassword != nil {
		if err := validatePassword(*update.SIPPassword); err != nil {
			return interfaces.Device{}, err
		}
	}

	s.mu.Lock()
	device, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return interfaces.Device{}, interfaces.ErrDeviceNotFound
	}

	if update.Model != nil {
		device.Model = *update.Model
	}
	if update.Label != nil {
		device.Label = *update.Label
	}
	if update.SIPServer != nil {
		device.SIPServer = *update.SIPServer
	}
	if update.SIPUser != nil {
		device.SIPUser = *update.SIPUser
	}
	if update.SIPPassword != nil && *update.SIPPassword != "" {
		device.SIPPassword = *update.SIPPassword
	}
	if update.DisplayName != nil {
		device.DisplayName = *update.DisplayName
	}

	s.devices[id] = device
	err := s.persistLocked(ctx, "update device")
	s.mu.Unlock()

	if err != nil {
		return interfaces.Device{}, err
	}

	s.publish(ctx, interfaces.EventDeviceUpdated, id)
	return device, nil
}

// Delete removes the device registered under id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id interfaces.DeviceID) (bool, error) {
	s.mu.Lock()
	if _, ok := s.devices[id]; !ok {
		s.mu.Unlock()
		return false, nil
	}

	delete(s.devices, id)
	err := s.persistLocked(ctx, "delete device")
	s.mu.Unlock()

	if err != nil {
		return true, err
	}

	s.log.Info("Device deleted", slog.String("deviceID", id.String()))
	s.publish(ctx, interfaces.EventDeviceDeleted, id)
	return true, nil
}

// AutoRegister returns the device registered under id, first creating a
// default record with empty credentials if the identity is unseen.
func (s *Store) AutoRegister(ctx context.Context, id interfaces.DeviceID) (interfaces.Device, error) {
	if id == "" {
		return interfaces.Device{}, &interfaces.ValidationError{Field: "mac", Reason: "no hex digits in device identity"}
	}

	s.mu.Lock()
	if existing, ok := s.devices[id]; ok {
		s.mu.Unlock()
		return existing, nil
	}

	display := id.Display()
	device := interfaces.Device{
		ID:          id,
		Model:       interfaces.PhoneModels[0],
		Label:       "Auto-registered " + display,
		DisplayName: "Phone " + display[max(0, len(display)-8):],
		CreatedAt:   s.now(),
	}
	s.devices[id] = device
	err := s.persistLocked(ctx, "auto-register device")
	s.mu.Unlock()

	if err != nil {
		return interfaces.Device{}, err
	}

	s.log.Info("Device auto-registered", slog.String("deviceID", id.String()))
	s.publish(ctx, interfaces.EventDeviceAutoRegistered, id)
	return device, nil
}
