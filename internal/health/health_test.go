package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
)

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	clk := clock.NewSimulated(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewChecker("1.2.3", clk)
	clk.Advance(90 * time.Second)

	resp := c.Health()
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "1m30s", resp.Uptime)
	assert.Equal(t, clk.Now(), resp.Timestamp)
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checks   map[string]Status
		expected Status
	}{
		{name: "no checks", checks: nil, expected: StatusHealthy},
		{name: "all healthy", checks: map[string]Status{"a": StatusHealthy, "b": StatusHealthy}, expected: StatusHealthy},
		{name: "degraded", checks: map[string]Status{"a": StatusHealthy, "b": StatusDegraded}, expected: StatusDegraded},
		{name: "unhealthy wins", checks: map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy}, expected: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("", nil)
			for name, status := range tt.checks {
				c.RegisterCheck(name, func() Check { return Check{Status: status} })
			}

			resp := c.Readiness()
			assert.Equal(t, tt.expected, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestChecker_UnregisterCheck(t *testing.T) {
	t.Parallel()

	c := NewChecker("", nil)
	c.RegisterCheck("bad", func() Check { return Check{Status: StatusUnhealthy} })
	assert.Equal(t, StatusUnhealthy, c.Readiness().Status)

	c.UnregisterCheck("bad")
	assert.Equal(t, StatusHealthy, c.Readiness().Status)
}

func TestChecker_Handlers(t *testing.T) {
	t.Parallel()

	c := NewChecker("dev", nil)
	status := StatusDegraded
	c.RegisterCheck("certificates", func() Check { return Check{Status: status, Message: "expiring: web"} })

	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "dev", health.Version)

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, StatusDegraded, ready.Status)
	assert.Equal(t, "expiring: web", ready.Checks["certificates"].Message)

	status = StatusUnhealthy
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
