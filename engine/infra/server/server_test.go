package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/514-labs/moosestack/engine/infra/monitoring"
	"github.com/514-labs/moosestack/engine/infra/monitoring/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHealthChecker struct {
	mock.Mock
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestServer(t *testing.T, health HealthChecker) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.ResetMetricsForTesting()
	service, err := monitoring.NewMonitoringService(t.Context(), monitoring.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Shutdown(context.Background()) })
	return NewServer(service, health, "test")
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("Should report ok when the worker is healthy", func(t *testing.T) {
		health := &mockHealthChecker{}
		health.On("HealthCheck", mock.Anything).Return(nil)
		w := get(t, newTestServer(t, health), "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, true, body["ready"])
		health.AssertExpectations(t)
	})

	t.Run("Should report unhealthy when the check fails", func(t *testing.T) {
		health := &mockHealthChecker{}
		health.On("HealthCheck", mock.Anything).Return(errors.New("temporal unreachable"))
		w := get(t, newTestServer(t, health), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, "temporal unreachable", body["error"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("Should serve Prometheus exposition", func(t *testing.T) {
		s := newTestServer(t, nil)
		get(t, s, "/health")
		w := get(t, s, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "moose_http_requests_total")
	})
}

func TestServer_Shutdown(t *testing.T) {
	t.Run("Should be a no-op when never started", func(t *testing.T) {
		s := newTestServer(t, nil)
		assert.NoError(t, s.Shutdown(t.Context()))
	})
}
