package monitoring

import (
	"context"
	"fmt"
	"net/http"

	interceptorpkg "github.com/514-labs/moosestack/engine/infra/monitoring/interceptor"
	"github.com/514-labs/moosestack/engine/infra/monitoring/middleware"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.temporal.io/sdk/interceptor"
)

const meterName = "moose-worker"

// pipeline is the otel to Prometheus export path. Each Service owns its own
// registry so worker gauges never collide across instances.
type pipeline struct {
	registry *prom.Registry
	provider *sdkmetric.MeterProvider
	handler  http.Handler
}

func newPipeline() (*pipeline, error) {
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	return &pipeline{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Service exposes the worker meter and the HTTP and Temporal hooks that
// record into it. A Service without a pipeline records into a no-op meter.
type Service struct {
	config   *Config
	meter    metric.Meter
	pipeline *pipeline
	initErr  error
}

func disabledService(cfg *Config, initErr error) *Service {
	return &Service{
		config:  cfg,
		meter:   noop.NewMeterProvider().Meter(meterName),
		initErr: initErr,
	}
}

// NewMonitoringService builds the Prometheus-backed service, or a no-op one
// when monitoring is disabled.
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, task metrics are not exported")
		return disabledService(cfg, nil), nil
	}
	p, err := newPipeline()
	if err != nil {
		return nil, err
	}
	log.Debug("Monitoring pipeline ready", "path", cfg.Path, "address", cfg.Address())
	return &Service{
		config:   cfg,
		meter:    p.provider.Meter(meterName),
		pipeline: p,
	}, nil
}

// NewMonitoringServiceWithFallback returns a no-op service instead of an
// error so a broken exporter never keeps the worker from polling tasks.
func NewMonitoringServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewMonitoringService(ctx, cfg)
	if err == nil {
		return service
	}
	logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return disabledService(cfg, err)
}

func (s *Service) Meter() metric.Meter {
	return s.meter
}

func (s *Service) Config() *Config {
	return s.config
}

// IsInitialized reports whether metrics are exported.
func (s *Service) IsInitialized() bool {
	return s.pipeline != nil
}

// InitializationError is the reason the fallback service was used, if any.
func (s *Service) InitializationError() error {
	return s.initErr
}

// GinMiddleware records request metrics for the health and metrics server.
func (s *Service) GinMiddleware() gin.HandlerFunc {
	if s.pipeline == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(s.meter)
}

// TemporalInterceptor counts task activities by outcome.
func (s *Service) TemporalInterceptor(ctx context.Context) interceptor.WorkerInterceptor {
	if s.pipeline == nil {
		return &interceptor.WorkerInterceptorBase{}
	}
	return interceptorpkg.TemporalMetrics(ctx, s.meter)
}

// ExporterHandler serves the Prometheus exposition, or 503 when disabled.
func (s *Service) ExporterHandler() http.Handler {
	if s.pipeline != nil {
		return s.pipeline.handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
			logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
		}
	})
}

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.provider.Shutdown(ctx)
}
