package cli

import (
	"context"
	"fmt"

	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/514-labs/moosestack/pkg/config"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultConfigFile = "moose-worker.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd(registry workflow.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:           "moose-worker",
		Short:         "Run Moose workflow tasks on a Temporal task queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		WorkerCmd(registry),
		WorkflowsCmd(registry),
		ConfigCmd(),
	)
	return root
}

func addGlobalFlags(fs *pflag.FlagSet) {
	defaults := config.Default()
	fs.String("config", defaultConfigFile, "Path to the YAML configuration file")
	fs.String("env-file", defaultEnvFile, "Path to the environment variables file")
	fs.String("log-level", defaults.Runtime.LogLevel, "Log level (debug, info, warn, error, disabled)")
	fs.Bool("log-json", defaults.Runtime.LogJSON, "Emit operational logs as JSON")
	fs.Bool("log-source", defaults.Runtime.LogSource, "Include source locations in logs")

	fs.String("temporal-host-port", defaults.Temporal.HostPort, "Temporal frontend address")
	fs.String("temporal-namespace", defaults.Temporal.Namespace, "Temporal namespace")
	fs.String("task-queue", "", "Task queue to poll (default: slug of the project name)")
	fs.String("project", defaults.Project.Name, "Project name")
	fs.Duration("heartbeat-interval", defaults.Worker.HeartbeatInterval, "Interval between task heartbeats")
	fs.Int("max-concurrent-activities", defaults.Worker.MaxConcurrentActivities, "Maximum concurrent task executions")
	fs.Duration("shutdown-timeout", defaults.Worker.ShutdownTimeout, "Grace period for in-flight tasks on shutdown")
	fs.Uint64("dial-retries", defaults.Worker.DialRetries, "Temporal connection retries at startup")
	fs.Bool("monitoring", defaults.Monitoring.Enabled, "Serve Prometheus metrics and health checks")
	fs.Int("monitoring-port", defaults.Monitoring.Port, "Port for metrics and health checks")
}

// SetupGlobalConfig loads the env file and configuration, then attaches the
// configuration manager and logger to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	manager := config.NewManager(nil)
	cfg, err := manager.Load(ctx, configSources(cmd, configFile)...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	ctx = config.ContextWithManager(ctx, manager)
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())
	cmd.SetContext(ctx)
	return nil
}

func configSources(cmd *cobra.Command, configFile string) []config.Source {
	sources := []config.Source{config.NewDefaultProvider()}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	if flags := extractCLIFlags(cmd); len(flags) > 0 {
		sources = append(sources, config.NewCLIProvider(flags))
	}
	return sources
}
