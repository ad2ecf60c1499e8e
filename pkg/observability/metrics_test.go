package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.LoginsTotal.WithLabelValues("success").Inc()
	m.LoginsTotal.WithLabelValues("failure").Inc()
	m.LoginsTotal.WithLabelValues("failure").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure")))
}

func TestObserveAuthzDecision(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveAuthzDecision("team", "delete", false)
	m.ObserveAuthzDecision("team", "read", true)
	m.ObserveAuthzDecision("team", "read", true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("team", "delete", "deny")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("team", "read", "allow")))
}

func TestObserveDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveDBStats(sql.DBStats{InUse: 3, Idle: 2})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnectionsIdle))

	// A later snapshot replaces the gauges rather than accumulating.
	m.ObserveDBStats(sql.DBStats{InUse: 0, Idle: 5})

	assert.Equal(t, float64(0), testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.DBConnectionsIdle))
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := m.InstrumentHandler("/api/teams/{team_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/teams/9", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/api/teams/{team_id}", "403")))
}
