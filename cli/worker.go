package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/514-labs/moosestack/engine/infra/monitoring"
	"github.com/514-labs/moosestack/engine/infra/server"
	"github.com/514-labs/moosestack/engine/worker"
	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/514-labs/moosestack/pkg/config"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/514-labs/moosestack/pkg/tasklog"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// WorkerCmd returns the command that polls the task queue until interrupted.
func WorkerCmd(registry workflow.Registry) *cobra.Command {
	return &cobra.Command{
		Use:     "worker",
		Aliases: []string{"start"},
		Short:   "Start a worker executing the registered workflow tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if registry == nil {
				return errors.New("no workflow registry configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, registry)
		},
	}
}

func runWorker(ctx context.Context, registry workflow.Registry) error {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration missing from context; attach a manager with config.ContextWithManager")
	}
	log := logger.FromContext(ctx)
	tasklog.Install(os.Stdout, os.Stderr)
	gin.SetMode(gin.ReleaseMode)

	mon := monitoring.NewMonitoringServiceWithFallback(ctx, monitoringConfig(cfg))
	w, err := worker.New(ctx, cfg, registry, worker.WithMonitoring(mon))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	srv := server.NewServer(mon, w, monitoring.Version)
	if cfg.Monitoring.Enabled {
		if err := srv.Start(ctx); err != nil {
			shutdownWorker(ctx, cfg, w, srv, mon)
			return err
		}
	}
	log.Info("Waiting for tasks", "task_queue", w.TaskQueue(), "project", cfg.Project.Name)
	<-ctx.Done()
	log.Info("Shutdown signal received")
	shutdownWorker(ctx, cfg, w, srv, mon)
	return nil
}

func monitoringConfig(cfg *config.Config) *monitoring.Config {
	return &monitoring.Config{
		Enabled: cfg.Monitoring.Enabled,
		Path:    cfg.Monitoring.Path,
		Host:    cfg.Monitoring.Host,
		Port:    cfg.Monitoring.Port,
	}
}

func shutdownWorker(
	ctx context.Context,
	cfg *config.Config,
	w *worker.Worker,
	srv *server.Server,
	mon *monitoring.Service,
) {
	log := logger.FromContext(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to stop metrics server", "error", err)
	}
	w.Stop(shutdownCtx)
	if err := mon.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush metrics", "error", err)
	}
}
