package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/514-labs/moosestack/engine/infra/monitoring/metrics"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	initOnce            sync.Once
	initMutex           sync.Mutex
)

func initMetrics(meter metric.Meter) {
	if meter == nil {
		return
	}
	initMutex.Lock()
	defer initMutex.Unlock()
	initOnce.Do(func() {
		var err error
		httpRequestsTotal, err = meter.Int64Counter(
			metrics.MetricNameWithSubsystem("http", "requests_total"),
			metric.WithDescription("Total HTTP requests served by the worker endpoint"),
		)
		if err != nil {
			logger.Error("Failed to create http requests total counter", "error", err)
		}
		httpRequestDuration, err = meter.Float64Histogram(
			metrics.MetricNameWithSubsystem("http", "request_duration_seconds"),
			metric.WithDescription("HTTP request latency"),
			metric.WithExplicitBucketBoundaries(metrics.HTTPDurationBuckets...),
		)
		if err != nil {
			logger.Error("Failed to create http request duration histogram", "error", err)
		}
	})
}

// ResetMetricsForTesting resets the metrics initialization state for testing
// This should only be used in tests to ensure clean state between test runs
func ResetMetricsForTesting() {
	initMutex.Lock()
	defer initMutex.Unlock()
	httpRequestsTotal = nil
	httpRequestDuration = nil
	initOnce = sync.Once{}
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	initMetrics(meter)
	return func(c *gin.Context) {
		if httpRequestsTotal == nil || httpRequestDuration == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		recordMetrics(c, start)
	}
}

func recordMetrics(c *gin.Context, start time.Time) {
	duration := time.Since(start).Seconds()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("path", path),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	httpRequestsTotal.Add(c.Request.Context(), 1, attrs)
	httpRequestDuration.Record(c.Request.Context(), duration, attrs)
}
