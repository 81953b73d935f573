package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should count requests by route", func(t *testing.T) {
		ResetMetricsForTesting()
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		router := gin.New()
		router.Use(HTTPMetrics(provider.Meter("test")))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		for range 3 {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			require.Equal(t, http.StatusOK, w.Code)
		}
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		var total int64
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name != "moose_http_requests_total" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
		assert.Equal(t, int64(3), total)
	})

	t.Run("Should pass requests through without a meter", func(t *testing.T) {
		ResetMetricsForTesting()
		router := gin.New()
		router.Use(HTTPMetrics(nil))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
