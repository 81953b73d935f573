package interceptor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/514-labs/moosestack/engine/infra/monitoring/metrics"
	"github.com/514-labs/moosestack/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
)

var (
	taskStartedTotal   metric.Int64Counter
	taskCompletedTotal metric.Int64Counter
	taskFailedTotal    metric.Int64Counter
	taskCanceledTotal  metric.Int64Counter
	taskDuration       metric.Float64Histogram
	tasksRunning       metric.Int64UpDownCounter
	workersRunning     metric.Int64UpDownCounter
	initOnce           sync.Once
	metricsMutex       sync.RWMutex
)

const (
	resultCompleted = "completed"
	resultFailed    = "failed"
	resultCanceled  = "canceled"
	resultTimeout   = "timeout"
)

// resetMetrics is used for testing purposes only
func resetMetrics() {
	taskStartedTotal = nil
	taskCompletedTotal = nil
	taskFailedTotal = nil
	taskCanceledTotal = nil
	taskDuration = nil
	tasksRunning = nil
	workersRunning = nil
	initOnce = sync.Once{}
}

// ResetMetricsForTesting resets the metrics initialization state for testing
// This should only be used in tests to ensure clean state between test runs
func ResetMetricsForTesting() {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	resetMetrics()
}

func initTaskCounters(meter metric.Meter) error {
	var err error
	taskStartedTotal, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("task", "started_total"),
		metric.WithDescription("Started task activities"),
	)
	if err != nil {
		return err
	}
	taskCompletedTotal, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("task", "completed_total"),
		metric.WithDescription("Task activities that returned a result"),
	)
	if err != nil {
		return err
	}
	taskFailedTotal, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("task", "failed_total"),
		metric.WithDescription("Task activities that returned a failure"),
	)
	if err != nil {
		return err
	}
	taskCanceledTotal, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("task", "canceled_total"),
		metric.WithDescription("Task activities canceled by the orchestrator"),
	)
	return err
}

func initTaskGauges(meter metric.Meter) error {
	var err error
	taskDuration, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("task", "duration_seconds"),
		metric.WithDescription("Task activity execution time"),
		metric.WithExplicitBucketBoundaries(metrics.ActivityDurationBuckets...),
	)
	if err != nil {
		return err
	}
	tasksRunning, err = meter.Int64UpDownCounter(
		metrics.MetricNameWithSubsystem("task", "running"),
		metric.WithDescription("Task activities currently executing"),
	)
	if err != nil {
		return err
	}
	workersRunning, err = meter.Int64UpDownCounter(
		metrics.MetricNameWithSubsystem("temporal", "workers_running_total"),
		metric.WithDescription("Currently running workers"),
	)
	return err
}

func initMetrics(ctx context.Context, meter metric.Meter) {
	if meter == nil {
		return
	}
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	initOnce.Do(func() {
		log := logger.FromContext(ctx)
		if err := initTaskCounters(meter); err != nil {
			log.Error("Failed to create task counters", "error", err, "component", "temporal_metrics")
			return
		}
		if err := initTaskGauges(meter); err != nil {
			log.Error("Failed to create task gauges", "error", err, "component", "temporal_metrics")
		}
	})
}

// TemporalMetrics creates a new Temporal metrics interceptor
func TemporalMetrics(ctx context.Context, meter metric.Meter) interceptor.WorkerInterceptor {
	if meter == nil {
		log := logger.FromContext(ctx)
		log.Warn("TemporalMetrics called with nil meter, returning no-op interceptor")
		return &interceptor.WorkerInterceptorBase{}
	}
	initMetrics(ctx, meter)
	return &metricsInterceptor{baseCtx: context.WithoutCancel(ctx)}
}

type metricsInterceptor struct {
	interceptor.WorkerInterceptorBase
	baseCtx context.Context
}

// InterceptActivity intercepts task activities for metrics collection
func (m *metricsInterceptor) InterceptActivity(
	_ context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{Next: next},
		baseCtx:                        m.baseCtx,
	}
}

type activityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	baseCtx context.Context
}

// ExecuteActivity records metrics for one task activity
func (a *activityInboundInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (any, error) {
	activityType := activity.GetInfo(ctx).ActivityType.Name
	start := time.Now()
	recordStart(a.baseCtx, activityType)
	result, err := a.Next.ExecuteActivity(ctx, in)
	recordOutcome(a.baseCtx, activityType, time.Since(start), err)
	return result, err
}

func recordStart(ctx context.Context, activityType string) {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	attrs := metric.WithAttributes(attribute.String("activity_type", activityType))
	if taskStartedTotal != nil {
		taskStartedTotal.Add(ctx, 1, attrs)
	}
	if tasksRunning != nil {
		tasksRunning.Add(ctx, 1, attrs)
	}
}

func recordOutcome(ctx context.Context, activityType string, elapsed time.Duration, err error) {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	label, errType := classifyActivityError(err)
	typeAttr := attribute.String("activity_type", activityType)
	if tasksRunning != nil {
		tasksRunning.Add(ctx, -1, metric.WithAttributes(typeAttr))
	}
	if taskDuration != nil {
		taskDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(typeAttr, attribute.String("result", label)))
	}
	switch label {
	case resultCompleted:
		if taskCompletedTotal != nil {
			taskCompletedTotal.Add(ctx, 1, metric.WithAttributes(typeAttr))
		}
	case resultCanceled:
		if taskCanceledTotal != nil {
			taskCanceledTotal.Add(ctx, 1, metric.WithAttributes(typeAttr))
		}
	default:
		if taskFailedTotal != nil {
			taskFailedTotal.Add(ctx, 1, metric.WithAttributes(
				typeAttr,
				attribute.String("result", label),
				attribute.String("error_type", errType),
			))
		}
	}
}

// classifyActivityError maps an activity error to a result label and, for
// failures, the application error type.
func classifyActivityError(err error) (string, string) {
	if err == nil {
		return resultCompleted, ""
	}
	switch {
	case errors.Is(err, context.Canceled) || temporal.IsCanceledError(err):
		return resultCanceled, ""
	case errors.Is(err, context.DeadlineExceeded) || temporal.IsTimeoutError(err):
		return resultTimeout, ""
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return resultFailed, appErr.Type()
	}
	return resultFailed, "unknown"
}

// IncrementRunningWorkers increments the running workers counter
func IncrementRunningWorkers(ctx context.Context) {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	if workersRunning != nil {
		workersRunning.Add(context.WithoutCancel(ctx), 1)
	}
}

// DecrementRunningWorkers decrements the running workers counter
func DecrementRunningWorkers(ctx context.Context) {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	if workersRunning != nil {
		workersRunning.Add(context.WithoutCancel(ctx), -1)
	}
}
