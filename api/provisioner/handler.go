package provisioner

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/ruteri/sip-provisioning-backend/metrics"
	"github.com/ruteri/sip-provisioning-backend/provisioning"
)

const (
	contentTypeXML = "application/xml"
	noCache        = "no-cache, no-store, must-revalidate"

	notFoundBody = `<?xml version="1.0" encoding="UTF-8"?><error>File not found</error>`

	eventPublishTimeout = 500 * time.Millisecond
)

// Handler serves provisioning artifacts to phones. Every request for a
// resolvable artifact auto-registers the requesting device.
type Handler struct {
	devices  interfaces.DeviceRegistry
	settings interfaces.SettingsStore
	events   interfaces.EventPublisher
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHandler creates a provisioning handler. events and m may be nil.
func NewHandler(devices interfaces.DeviceRegistry, settings interfaces.SettingsStore, events interfaces.EventPublisher, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		devices:  devices,
		settings: settings,
		events:   events,
		metrics:  m,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/provision-test", h.HandleTestProvision)
	r.Get("/provision/{mac}", h.HandleProvisionSegment)
	r.Get("/provision/{mac}/{filename}", h.HandleProvisionFile)
}

// HandleProvisionSegment serves the single segment form.
//
// URL format: GET /provision/{mac}
//
// "{id}.cfg" and a bare identity yield the master manifest,
// "{id}-{filename}" yields the artifact filename names.
func (h *Handler) HandleProvisionSegment(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, provisioning.ResolveSegment(chi.URLParam(r, "mac")))
}

// HandleProvisionFile serves the two-level form.
//
// URL format: GET /provision/{mac}/{filename}
func (h *Handler) HandleProvisionFile(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, provisioning.ResolvePath(chi.URLParam(r, "mac"), chi.URLParam(r, "filename")))
}

// HandleTestProvision serves the generic master manifest without touching the registry.
//
// URL format: GET /provision-test
func (h *Handler) HandleTestProvision(w http.ResponseWriter, r *http.Request) {
	h.writeXML(w, http.StatusOK, provisioning.RenderGenericMaster())
	h.metrics.ProvisioningRequest("test", http.StatusOK)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, req provisioning.Request) {
	if req.Kind == provisioning.ArtifactUnresolved || req.ID == "" {
		h.log.Debug("Unresolved provisioning request",
			slog.String("rawID", req.RawID),
			slog.String("filename", req.Filename))
		h.writeXML(w, http.StatusNotFound, notFoundBody)
		h.metrics.ProvisioningRequest(req.Kind.String(), http.StatusNotFound)
		return
	}

	device, err := h.devices.AutoRegister(r.Context(), req.ID)
	if err != nil {
		h.fail(w, req, err)
		return
	}

	body, err := provisioning.Render(req.Kind, device, h.settings.Settings())
	if err != nil {
		h.fail(w, req, err)
		return
	}

	h.writeXML(w, http.StatusOK, body)
	h.metrics.ProvisioningRequest(req.Kind.String(), http.StatusOK)
	h.log.Info("Served provisioning artifact",
		slog.String("deviceID", req.ID.String()),
		slog.String("artifact", req.Kind.String()),
		slog.String("filename", req.Filename))

	if h.events == nil {
		return
	}
	event := interfaces.Event{
		Type:     interfaces.EventArtifactServed,
		DeviceID: req.ID,
		Artifact: req.Kind.String(),
		Time:     time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(r.Context(), eventPublishTimeout)
	defer cancel()
	if err := h.events.Publish(ctx, event); err != nil {
		h.log.Warn("Failed to publish artifact event", "err", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, req provisioning.Request, err error) {
	var persistErr *interfaces.PersistenceError
	if errors.As(err, &persistErr) {
		h.metrics.PersistFailure()
	}

	h.log.Error("Provisioning request failed",
		slog.String("deviceID", req.ID.String()),
		slog.String("artifact", req.Kind.String()),
		"err", err)
	h.writeXML(w, http.StatusInternalServerError, errorDocument(err.Error()))
	h.metrics.ProvisioningRequest(req.Kind.String(), http.StatusInternalServerError)
}

func (h *Handler) writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", contentTypeXML)
	w.Header().Set("Cache-Control", noCache)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.Debug("Failed to write response", "err", err)
	}
}

func errorDocument(message string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><error>`)
	_ = xml.EscapeText(&b, []byte(message))
	b.WriteString(`</error>`)
	return b.String()
}
