package api

import (
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// MaxBodySize is the maximum allowed request body size (1MB).
const MaxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the body of every failed admin request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of a successful delete.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// UpdateDeviceRequest is the body of PUT /devices. The device is identified
// by "mac" in any common notation or by its canonical "id".
type UpdateDeviceRequest struct {
	ID  string `json:"id,omitempty"`
	MAC string `json:"mac,omitempty"`
	interfaces.DeviceUpdate
}

// Identity returns the normalized identity of the target device.
func (r UpdateDeviceRequest) Identity() interfaces.DeviceID {
	if r.ID != "" {
		return interfaces.NormalizeMAC(r.ID)
	}
	return interfaces.NormalizeMAC(r.MAC)
}
