package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/514-labs/moosestack/engine/infra/monitoring/metrics"
	"github.com/514-labs/moosestack/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Set via -ldflags "-X github.com/514-labs/moosestack/engine/infra/monitoring.Version=..."
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

// WorkerInfo describes a started worker for the worker gauges.
type WorkerInfo struct {
	TaskQueue  string
	Identity   string
	Namespace  string
	Activities int
	// OrphanedJobs reports blocking handlers still running after their
	// invocation was cancelled. Optional.
	OrphanedJobs func() int64
}

func (w WorkerInfo) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("task_queue", w.TaskQueue),
		attribute.String("worker_identity", w.Identity),
		attribute.String("namespace", w.Namespace),
	}
}

// ObserveWorker registers the gauges of a running worker: build info,
// uptime, registered activities and orphaned blocking jobs, all labelled
// with the task queue and worker identity. The returned func unregisters
// them and is safe to call more than once.
func (s *Service) ObserveWorker(ctx context.Context, info WorkerInfo) (func(), error) {
	name := func(n string) string { return metrics.MetricNameWithSubsystem("worker", n) }
	buildInfo, err := s.meter.Int64ObservableGauge(name("info"),
		metric.WithDescription("Worker build information (value=1)"))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker info gauge: %w", err)
	}
	uptime, err := s.meter.Float64ObservableGauge(name("uptime_seconds"),
		metric.WithDescription("Seconds since the worker started polling"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}
	activities, err := s.meter.Int64ObservableGauge(name("registered_activities"),
		metric.WithDescription("Activity types registered on the task queue"))
	if err != nil {
		return nil, fmt.Errorf("failed to create activities gauge: %w", err)
	}
	orphans, err := s.meter.Int64ObservableGauge(name("orphaned_blocking_jobs"),
		metric.WithDescription("Blocking task handlers still running after cancellation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create orphaned jobs gauge: %w", err)
	}

	version, commit, goVersion := getBuildInfo()
	attrs := metric.WithAttributes(info.attributes()...)
	buildAttrs := metric.WithAttributes(append(info.attributes(),
		attribute.String("version", version),
		attribute.String("commit_hash", commit),
		attribute.String("go_version", goVersion),
	)...)
	started := time.Now()
	reg, err := s.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(buildInfo, 1, buildAttrs)
		o.ObserveFloat64(uptime, time.Since(started).Seconds(), attrs)
		o.ObserveInt64(activities, int64(info.Activities), attrs)
		var n int64
		if info.OrphanedJobs != nil {
			n = info.OrphanedJobs()
		}
		o.ObserveInt64(orphans, n, attrs)
		return nil
	}, buildInfo, uptime, activities, orphans)
	if err != nil {
		return nil, fmt.Errorf("failed to register worker gauges: %w", err)
	}
	logger.FromContext(ctx).Debug("Worker gauges registered",
		"task_queue", info.TaskQueue,
		"version", version,
		"commit", commit)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := reg.Unregister(); err != nil {
				logger.FromContext(ctx).Warn("Failed to unregister worker gauges", "error", err)
			}
		})
	}, nil
}

// getBuildInfo prefers ldflags values and falls back to module build info.
func getBuildInfo() (version, commit, goVersion string) {
	version, commit = Version, CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if commit == "unknown" && setting.Key == "vcs.revision" {
				commit = setting.Value
			}
		}
	}
	return version, commit, runtime.Version()
}
