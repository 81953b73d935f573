package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/514-labs/moosestack/engine/schema"
	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/514-labs/moosestack/pkg/tasklog"
)

// ExecutionInput is the activity argument sent by the orchestrator.
type ExecutionInput struct {
	WorkflowName string         `json:"workflow_name"`
	TaskName     string         `json:"task_name"`
	InputData    map[string]any `json:"input_data,omitempty"`
}

// Payload returns the user payload: input_data.data when present, otherwise
// input_data itself. An empty input_data means no payload.
func (in *ExecutionInput) Payload() any {
	if in == nil || len(in.InputData) == 0 {
		return nil
	}
	if data, ok := in.InputData["data"]; ok {
		return data
	}
	return in.InputData
}

// InputValidator coerces a raw payload into the type a task declares.
type InputValidator func(taskName string, raw any, in *schema.Type) (any, error)

// ActivityFunc is the signature registered with the Temporal worker.
type ActivityFunc func(ctx context.Context, in *ExecutionInput) (*task.Result, error)

// -----------------------------------------------------------------------------
// Executor
// -----------------------------------------------------------------------------

// Executor resolves, validates and runs one task invocation per activity
// call.
type Executor struct {
	registry    workflow.Registry
	validate    InputValidator
	heartbeater Heartbeater
	interval    time.Duration
	emitter     *tasklog.Emitter
	log         logger.Logger
	orphans     atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithValidator replaces the input coercion, schema.Validate by default.
func WithValidator(v InputValidator) Option {
	return func(e *Executor) {
		if v != nil {
			e.validate = v
		}
	}
}

// WithHeartbeatInterval sets the progress heartbeat period. Non-positive
// values keep DefaultHeartbeatInterval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithHeartbeater replaces the Temporal activity heartbeat, mostly for tests.
func WithHeartbeater(hb Heartbeater) Option {
	return func(e *Executor) {
		if hb != nil {
			e.heartbeater = hb
		}
	}
}

// WithEmitter sets where structured task records are written.
func WithEmitter(em *tasklog.Emitter) Option {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithLogger sets the operational logger attached to each invocation.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// NewExecutor returns an executor over registry that heartbeats through the
// Temporal activity context and writes records to tasklog.Default.
func NewExecutor(registry workflow.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry:    registry,
		validate:    schema.Validate,
		heartbeater: ActivityHeartbeater,
		interval:    DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emitter == nil {
		e.emitter = tasklog.Default()
	}
	return e
}

// OrphanedJobs reports blocking handlers still running after their
// invocation was cancelled.
func (e *Executor) OrphanedJobs() int64 {
	return e.orphans.Load()
}

func (e *Executor) newSlot() *slotExecutor {
	slot := newSlotExecutor()
	slot.orphans = &e.orphans
	return slot
}

// Execute runs one task invocation. It returns a *task.Result on success, a
// Temporal application error carrying the failure payload, or the
// cancellation error of ctx.
func (e *Executor) Execute(ctx context.Context, in *ExecutionInput) (*task.Result, error) {
	name := ""
	if in != nil {
		name = in.TaskName
	}
	return e.execute(ctx, name, in)
}

// ActivityFor returns the activity registered under the activity type name.
func (e *Executor) ActivityFor(name string) ActivityFunc {
	return func(ctx context.Context, in *ExecutionInput) (*task.Result, error) {
		return e.execute(ctx, name, in)
	}
}

func (e *Executor) execute(ctx context.Context, activityName string, in *ExecutionInput) (*task.Result, error) {
	if e.log != nil {
		ctx = logger.ContextWithLogger(ctx, e.log)
	}
	log := logger.FromContext(ctx)
	if in == nil {
		in = &ExecutionInput{}
	}
	identity := task.Identity(in.WorkflowName, in.TaskName)
	log.Info("Executing task",
		"activity", activityName,
		"workflow", in.WorkflowName,
		"task", in.TaskName)

	payload := in.Payload()
	log.Info("Processed input_data for task", "task", in.TaskName, "input", payload)

	def, err := e.registry.Resolve(in.WorkflowName, in.TaskName)
	if err != nil {
		return nil, e.packageFailure(identity, err)
	}
	log.Info("Found task in workflow", "task", in.TaskName, "workflow", in.WorkflowName)

	validated, err := e.validate(def.Name, payload, def.Input)
	if err != nil {
		log.Error("Failed to validate input data", "task", def.Name, "error", err)
		return nil, e.packageFailure(identity, err)
	}
	if def.Input != nil {
		log.Info("Converted input data", "task", def.Name, "type", def.Input.Name())
	}

	hb := startHeartbeat(ctx, e.heartbeater, in.TaskName, e.interval)
	defer hb.stop()
	slot := e.newSlot()
	defer slot.shutdown()

	state := task.NewState()
	tc := task.NewContext(state, validated, e.emitter, identity)
	out := dispatch(ctx, def.Name, def.Run, tc, slot)
	switch {
	case out.cancelled:
		return nil, e.handleCancellation(ctx, def, identity, state, validated, out.err)
	case out.err != nil:
		return nil, e.packageFailure(identity, out.err)
	default:
		return packageSuccess(in.TaskName, out.value), nil
	}
}
