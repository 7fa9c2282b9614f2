package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/sip-provisioning-backend/api"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/ruteri/sip-provisioning-backend/metrics"
)

// Operation names used in logs and metrics.
const (
	opListDevices    = "list_devices"
	opCreateDevice   = "create_device"
	opUpdateDevice   = "update_device"
	opDeleteDevice   = "delete_device"
	opGetSettings    = "get_settings"
	opUpdateSettings = "update_settings"
)

var (
	errInvalidRequest  = errors.New("Invalid request")
	errMissingIdentity = errors.New("MAC address required")
	errPhoneNotFound   = errors.New("Phone not found")
)

// Handler serves the JSON admin API over the device registry and the
// shared settings. Device passwords are only echoed back by create.
type Handler struct {
	devices  interfaces.DeviceRegistry
	settings interfaces.SettingsStore
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHandler creates an admin API handler. m may be nil.
func NewHandler(devices interfaces.DeviceRegistry, settings interfaces.SettingsStore, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		devices:  devices,
		settings: settings,
		metrics:  m,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/devices", h.HandleListDevices)
	r.Post("/devices", h.HandleCreateDevice)
	r.Put("/devices", h.HandleUpdateDevice)
	r.Delete("/devices", h.HandleDeleteDevice)
	r.Get("/settings", h.HandleGetSettings)
	r.Put("/settings", h.HandleUpdateSettings)
}

// HandleListDevices returns every device, most recently created first.
//
// URL format: GET /devices
func (h *Handler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.devices.List()
	redacted := make([]interfaces.Device, 0, len(devices))
	for _, device := range devices {
		redacted = append(redacted, device.Redacted())
	}
	h.writeJSON(w, opListDevices, http.StatusOK, redacted)
}

// HandleCreateDevice creates or replaces a device.
//
// URL format: POST /devices
//
// Request body: JSON, see interfaces.NewDevice
//
// Response: 201 with the stored record, password included.
func (h *Handler) HandleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var fields interfaces.NewDevice
	if err := decodeBody(w, r, &fields); err != nil {
		h.writeError(w, opCreateDevice, err)
		return
	}

	device, err := h.devices.Create(r.Context(), fields)
	if err != nil {
		h.writeError(w, opCreateDevice, err)
		return
	}

	h.log.Info("Device created", slog.String("deviceID", device.ID.String()))
	h.writeJSON(w, opCreateDevice, http.StatusCreated, device)
}

// HandleUpdateDevice merges a partial update into an existing device.
//
// URL format: PUT /devices
//
// Request body: JSON, see api.UpdateDeviceRequest
func (h *Handler) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateDeviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, opUpdateDevice, err)
		return
	}

	if req.ID == "" && req.MAC == "" {
		h.writeError(w, opUpdateDevice, &api.RequestError{StatusCode: http.StatusBadRequest, Err: errMissingIdentity})
		return
	}

	device, err := h.devices.Update(r.Context(), req.Identity(), req.DeviceUpdate)
	if err != nil {
		h.writeError(w, opUpdateDevice, err)
		return
	}

	h.log.Info("Device updated", slog.String("deviceID", device.ID.String()))
	h.writeJSON(w, opUpdateDevice, http.StatusOK, device.Redacted())
}

// HandleDeleteDevice removes a device.
//
// URL format: DELETE /devices?mac={mac} or DELETE /devices?id={id}
func (h *Handler) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		raw = r.URL.Query().Get("mac")
	}
	if raw == "" {
		h.writeError(w, opDeleteDevice, &api.RequestError{StatusCode: http.StatusBadRequest, Err: errMissingIdentity})
		return
	}

	id := interfaces.NormalizeMAC(raw)
	removed, err := h.devices.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, opDeleteDevice, err)
		return
	}
	if !removed {
		h.writeError(w, opDeleteDevice, interfaces.ErrDeviceNotFound)
		return
	}

	h.log.Info("Device deleted", slog.String("deviceID", id.String()))
	h.writeJSON(w, opDeleteDevice, http.StatusOK, api.SuccessResponse{Success: true})
}

// HandleGetSettings returns the shared settings.
//
// URL format: GET /settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, opGetSettings, http.StatusOK, h.settings.Settings())
}

// HandleUpdateSettings merges the present fields into the shared settings.
// A contacts array replaces the whole directory.
//
// URL format: PUT /settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update interfaces.SettingsUpdate
	if err := decodeBody(w, r, &update); err != nil {
		h.writeError(w, opUpdateSettings, err)
		return
	}

	settings, err := h.settings.UpdateSettings(r.Context(), update)
	if err != nil {
		h.writeError(w, opUpdateSettings, err)
		return
	}

	h.log.Info("Settings updated", slog.Int("contacts", len(settings.Contacts)))
	h.writeJSON(w, opUpdateSettings, http.StatusOK, settings)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, api.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &api.RequestError{StatusCode: http.StatusBadRequest, Err: errInvalidRequest}
	}
	return nil
}

// statusFor maps registry errors onto HTTP statuses and public messages.
func statusFor(err error) (int, string) {
	var (
		reqErr        *api.RequestError
		validationErr *interfaces.ValidationError
		persistErr    *interfaces.PersistenceError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode, reqErr.Error()
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, interfaces.ErrDeviceNotFound):
		return http.StatusNotFound, errPhoneNotFound.Error()
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "Failed to save data"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, message := statusFor(err)

	var persistErr *interfaces.PersistenceError
	if errors.As(err, &persistErr) {
		h.metrics.PersistFailure()
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Admin request failed", slog.String("op", op), "err", err)
	} else {
		h.log.Debug("Admin request rejected", slog.String("op", op), "err", err)
	}
	h.writeJSON(w, op, status, api.ErrorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, op string, status int, body any) {
	h.metrics.AdminRequest(op, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", slog.String("op", op), "err", err)
	}
}
