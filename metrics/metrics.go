// Package metrics exposes Prometheus metrics of the provisioning server.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// Metrics holds the application collectors. A nil *Metrics records nothing.
type Metrics struct {
	provisioningRequests *prometheus.CounterVec
	adminRequests        *prometheus.CounterVec
	events               *prometheus.CounterVec
	persistFailures      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		provisioningRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_requests_total",
			Help:      "Provisioning artifact requests by artifact kind and response status.",
		}, []string{"artifact", "status"}),
		adminRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_requests_total",
			Help:      "Admin API requests by operation and response status.",
		}, []string{"operation", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Provisioning events by type.",
		}, []string{"type"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes of the registry snapshot.",
		}),
	}
	reg.MustRegister(m.provisioningRequests, m.adminRequests, m.events, m.persistFailures)
	return m
}

// ProvisioningRequest counts one artifact request.
func (m *Metrics) ProvisioningRequest(artifact string, status int) {
	if m == nil {
		return
	}
	m.provisioningRequests.WithLabelValues(artifact, strconv.Itoa(status)).Inc()
}

// AdminRequest counts one admin API request.
func (m *Metrics) AdminRequest(operation string, status int) {
	if m == nil {
		return
	}
	m.adminRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

// PersistFailure counts one failed snapshot write.
func (m *Metrics) PersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// Publish counts event. It lets Metrics sit among the event publishers.
func (m *Metrics) Publish(_ context.Context, event interfaces.Event) error {
	if m == nil {
		return nil
	}
	m.events.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Close implements interfaces.EventPublisher.
func (m *Metrics) Close() error {
	return nil
}

var _ interfaces.EventPublisher = (*Metrics)(nil)

// MetricsServer serves the collectors of a private registry on /metrics.
type MetricsServer struct {
	registry *prometheus.Registry
	metrics  *Metrics
	srv      *http.Server
}

// New creates a metrics server listening on addr with the application
// collectors registered under namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	m := NewMetrics(namespace, registry)

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		metrics:  m,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Metrics returns the application collectors.
func (s *MetricsServer) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the /metrics router.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
