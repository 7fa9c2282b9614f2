package registry

import (
	"context"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockDeviceRegistry mocks the DeviceRegistry interface
type MockDeviceRegistry struct {
	mock.Mock
}

// Get mocks the Get method
func (m *MockDeviceRegistry) Get(id interfaces.DeviceID) (interfaces.Device, error) {
	args := m.Called(id)
	return args.Get(0).(interfaces.Device), args.Error(1)
}

// List mocks the List method
func (m *MockDeviceRegistry) List() []interfaces.Device {
	args := m.Called()
	return args.Get(0).([]interfaces.Device)
}

// Create mocks the Create method
func (m *MockDeviceRegistry) Create(ctx context.Context, fields interfaces.NewDevice) (interfaces.Device, error) {
	args := m.Called(ctx, fields)
	return args.Get(0).(interfaces.Device), args.Error(1)
}

// Update mocks the Update method
func (m *MockDeviceRegistry) Update(ctx context.Context, id interfaces.DeviceID, update interfaces.DeviceUpdate) (interfaces.Device, error) {
	args := m.Called(ctx, id, update)
	return args.Get(0).(interfaces.Device), args.Error(1)
}

// Delete mocks the Delete method
func (m *MockDeviceRegistry) Delete(ctx context.Context, id interfaces.DeviceID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// AutoRegister mocks the AutoRegister method
func (m *MockDeviceRegistry) AutoRegister(ctx context.Context, id interfaces.DeviceID) (interfaces.Device, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.Device), args.Error(1)
}

// MockSettingsStore mocks the SettingsStore interface
type MockSettingsStore struct {
	mock.Mock
}

// Settings mocks the Settings method
func (m *MockSettingsStore) Settings() interfaces.Settings {
	args := m.Called()
	return args.Get(0).(interfaces.Settings)
}

// UpdateSettings mocks the UpdateSettings method
func (m *MockSettingsStore) UpdateSettings(ctx context.Context, update interfaces.SettingsUpdate) (interfaces.Settings, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(interfaces.Settings), args.Error(1)
}
