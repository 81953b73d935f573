package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/514-labs/moosestack/engine/infra/monitoring"
	"github.com/514-labs/moosestack/engine/infra/monitoring/interceptor"
	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/514-labs/moosestack/pkg/config"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdkinterceptor "go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
)

// -----------------------------------------------------------------------------
// Temporal-based Worker
// -----------------------------------------------------------------------------

// Registrar is the subset of worker.Worker used to register task activities.
type Registrar interface {
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Worker polls one task queue and runs every registered task as a Temporal
// activity.
type Worker struct {
	client     *Client
	worker     worker.Worker
	executor   *Executor
	registry   workflow.Registry
	monitoring *monitoring.Service
	unobserve  func()
	taskQueue  string
	identity   string
	cfg        *config.Config
}

type workerOptions struct {
	monitoring *monitoring.Service
	executor   []Option
}

// WorkerOption customizes New.
type WorkerOption func(*workerOptions)

// WithMonitoring attaches the activity metrics interceptor and the worker
// gauges.
func WithMonitoring(service *monitoring.Service) WorkerOption {
	return func(o *workerOptions) {
		o.monitoring = service
	}
}

// WithExecutorOptions forwards options to the task executor.
func WithExecutorOptions(opts ...Option) WorkerOption {
	return func(o *workerOptions) {
		o.executor = append(o.executor, opts...)
	}
}

// New dials Temporal and prepares a worker serving every task in registry.
func New(
	ctx context.Context,
	cfg *config.Config,
	registry workflow.Registry,
	opts ...WorkerOption,
) (*Worker, error) {
	options := &workerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	taskQueue := TaskQueueName(cfg)
	temporalClient, err := NewClient(ctx, &TemporalConfig{
		HostPort:    cfg.Temporal.HostPort,
		Namespace:   cfg.Temporal.Namespace,
		TaskQueue:   taskQueue,
		DialRetries: cfg.Worker.DialRetries,
		DialBackoff: cfg.Worker.DialBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker client: %w", err)
	}
	identity := workerIdentity(cfg.Project.Name)
	workerOpts := &worker.Options{
		Identity:                           identity,
		MaxConcurrentActivityExecutionSize: cfg.Worker.MaxConcurrentActivities,
		WorkerStopTimeout:                  cfg.Worker.ShutdownTimeout,
	}
	if options.monitoring != nil {
		workerOpts.Interceptors = []sdkinterceptor.WorkerInterceptor{
			options.monitoring.TemporalInterceptor(ctx),
		}
	}
	execOpts := append([]Option{
		WithHeartbeatInterval(cfg.Worker.HeartbeatInterval),
		WithLogger(logger.FromContext(ctx)),
	}, options.executor...)
	return &Worker{
		client:     temporalClient,
		worker:     temporalClient.NewWorker(taskQueue, workerOpts),
		executor:   NewExecutor(registry, execOpts...),
		registry:   registry,
		monitoring: options.monitoring,
		taskQueue:  taskQueue,
		identity:   identity,
		cfg:        cfg,
	}, nil
}

// TaskQueueName returns the configured queue, or the project slug.
func TaskQueueName(cfg *config.Config) string {
	if cfg.Temporal.TaskQueue != "" {
		return cfg.Temporal.TaskQueue
	}
	return slug.Make(cfg.Project.Name)
}

func workerIdentity(project string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s@%s@%s", slug.Make(project), host, uuid.NewString())
}

// RegisterActivities registers one activity per task, under the bare task
// name and under <workflow>/<task>. A bare name shared by several
// workflows is registered once, for the first workflow in name order.
func RegisterActivities(r Registrar, registry workflow.Registry, executor *Executor) []string {
	seen := make(map[string]struct{})
	var names []string
	register := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		r.RegisterActivityWithOptions(executor.ActivityFor(name), activity.RegisterOptions{Name: name})
		names = append(names, name)
	}
	for _, wf := range registry.Workflows() {
		for _, def := range wf.GetTasks() {
			register(def.Name)
			register(wf.Name + "/" + def.Name)
		}
	}
	return names
}

// Start registers the task activities and begins polling the task queue.
func (o *Worker) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	names := RegisterActivities(o.worker, o.registry, o.executor)
	if err := o.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	interceptor.IncrementRunningWorkers(ctx)
	o.observe(ctx, len(names))
	log.Info("Worker started",
		"task_queue", o.taskQueue,
		"identity", o.identity,
		"activities", len(names))
	return nil
}

func (o *Worker) observe(ctx context.Context, activities int) {
	if o.monitoring == nil {
		return
	}
	unobserve, err := o.monitoring.ObserveWorker(ctx, monitoring.WorkerInfo{
		TaskQueue:    o.taskQueue,
		Identity:     o.identity,
		Namespace:    o.cfg.Temporal.Namespace,
		Activities:   activities,
		OrphanedJobs: o.executor.OrphanedJobs,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Worker gauges unavailable", "error", err)
		return
	}
	o.unobserve = unobserve
}

// Stop drains in-flight activities up to the stop timeout and closes the
// Temporal client.
func (o *Worker) Stop(ctx context.Context) {
	o.worker.Stop()
	if o.unobserve != nil {
		o.unobserve()
	}
	o.client.Close()
	interceptor.DecrementRunningWorkers(ctx)
	logger.FromContext(ctx).Info("Worker stopped", "task_queue", o.taskQueue)
}

// HealthCheck verifies the Temporal frontend is reachable.
func (o *Worker) HealthCheck(ctx context.Context) error {
	if _, err := o.client.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return fmt.Errorf("temporal health check failed: %w", err)
	}
	return nil
}

func (o *Worker) TaskQueue() string {
	return o.taskQueue
}

func (o *Worker) Identity() string {
	return o.identity
}

func (o *Worker) Executor() *Executor {
	return o.executor
}
