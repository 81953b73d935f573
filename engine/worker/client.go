package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// TemporalConfig selects the frontend, namespace and queue to dial.
type TemporalConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
	// DialRetries and DialBackoff control reconnect attempts at startup.
	DialRetries uint64
	DialBackoff time.Duration
}

// Client is a Temporal client bound to its dial configuration.
type Client struct {
	client.Client
	config *TemporalConfig
}

type dialFunc func(client.Options) (client.Client, error)

// NewClient dials Temporal, retrying with exponential backoff since the
// worker is often started before the orchestrator is reachable.
func NewClient(ctx context.Context, cfg *TemporalConfig) (*Client, error) {
	return newClient(ctx, cfg, client.Dial)
}

func newClient(ctx context.Context, cfg *TemporalConfig, dial dialFunc) (*Client, error) {
	log := logger.FromContext(ctx)
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	backoff := cfg.DialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	dialStart := time.Now()
	var temporalClient client.Client
	attempt := 0
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(cfg.DialRetries, retry.NewExponential(backoff)),
		func(_ context.Context) error {
			attempt++
			c, err := dial(options)
			if err != nil {
				log.Warn("Temporal dial failed", "host_port", cfg.HostPort, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			temporalClient = c
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	log.Debug("Temporal client connected", "duration", time.Since(dialStart), "attempts", attempt)
	return &Client{
		Client: temporalClient,
		config: cfg,
	}, nil
}

func (c *Client) Config() *TemporalConfig {
	return c.config
}

func (c *Client) NewWorker(taskQueue string, options *worker.Options) worker.Worker {
	if options == nil {
		return worker.New(c.Client, taskQueue, worker.Options{})
	}
	return worker.New(c.Client, taskQueue, *options)
}

func (c *Client) Close() {
	c.Client.Close()
}
