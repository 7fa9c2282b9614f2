package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.ProvisioningRequest("master", http.StatusOK)
	m.ProvisioningRequest("master", http.StatusOK)
	m.ProvisioningRequest("unresolved", http.StatusNotFound)
	m.AdminRequest("create_device", http.StatusBadRequest)
	m.PersistFailure()
	require.NoError(t, m.Publish(context.Background(), interfaces.Event{Type: interfaces.EventDeviceCreated}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.provisioningRequests.WithLabelValues("master", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.provisioningRequests.WithLabelValues("unresolved", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adminRequests.WithLabelValues("create_device", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("device.created")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ProvisioningRequest("master", http.StatusOK)
	m.AdminRequest("list_devices", http.StatusOK)
	m.PersistFailure()
	assert.NoError(t, m.Publish(context.Background(), interfaces.Event{}))
}

func TestMetricsServer(t *testing.T) {
	srv, err := New("sip_provisioning", "127.0.0.1:0")
	require.NoError(t, err)

	srv.Metrics().ProvisioningRequest("sip", http.StatusOK)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sip_provisioning_provisioning_requests_total{artifact="sip",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
