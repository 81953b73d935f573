package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/514-labs/moosestack/pkg/logger"
	"go.temporal.io/sdk/activity"
)

// DefaultHeartbeatInterval is used when no positive interval is configured.
const DefaultHeartbeatInterval = 5 * time.Second

// Heartbeater reports liveness to the orchestrator.
type Heartbeater interface {
	RecordHeartbeat(ctx context.Context, details ...any)
}

// HeartbeaterFunc adapts a function to Heartbeater.
type HeartbeaterFunc func(ctx context.Context, details ...any)

func (f HeartbeaterFunc) RecordHeartbeat(ctx context.Context, details ...any) {
	f(ctx, details...)
}

// ActivityHeartbeater records heartbeats through the Temporal activity
// context. It must only be used inside an activity.
var ActivityHeartbeater Heartbeater = HeartbeaterFunc(activity.RecordHeartbeat)

type heartbeatMonitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// startHeartbeat sends the starting heartbeat and then keeps reporting
// progress every interval until stop is called. The loop ignores
// cancellation of ctx so liveness keeps flowing while cleanup runs.
func startHeartbeat(
	ctx context.Context,
	hb Heartbeater,
	taskName string,
	interval time.Duration,
) *heartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m := &heartbeatMonitor{cancel: cancel, done: make(chan struct{})}
	hb.RecordHeartbeat(hbCtx, fmt.Sprintf("Starting task: %s", taskName))
	go m.loop(hbCtx, hb, taskName, interval)
	return m
}

func (m *heartbeatMonitor) loop(ctx context.Context, hb Heartbeater, taskName string, interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	progress := fmt.Sprintf("Task %s in progress", taskName)
	for {
		select {
		case <-ctx.Done():
			logger.FromContext(ctx).Debug("Heartbeat loop stopped", "task", taskName)
			return
		case <-ticker.C:
			hb.RecordHeartbeat(ctx, progress)
		}
	}
}

// stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (m *heartbeatMonitor) stop() {
	m.once.Do(m.cancel)
	<-m.done
}
