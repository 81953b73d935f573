package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/engine/workflow"
	"github.com/514-labs/moosestack/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) workflow.Registry {
	t.Helper()
	registry, err := workflow.NewRegistry(&workflow.Config{
		Name: "etl",
		Tasks: []*task.Definition{{
			Name: "extract",
			Run:  task.Blocking(func(*task.Context) (any, error) { return nil, nil }),
		}},
	})
	require.NoError(t, err)
	return registry
}

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should load YAML and CLI flags into the context", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "moose-worker.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  name: yaml-project\nworker:\n  heartbeat_interval: 2s\n"), 0o600))

		cmd := RootCmd(testRegistry(t))
		cmd.SetContext(context.Background())
		require.NoError(t, cmd.ParseFlags([]string{
			"--env-file", "",
			"--config", cfgPath,
			"--task-queue", "flag-queue",
			"--log-level", "disabled",
		}))

		require.NoError(t, SetupGlobalConfig(cmd))
		cfg := config.FromContext(cmd.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, "yaml-project", cfg.Project.Name)
		assert.Equal(t, 2*time.Second, cfg.Worker.HeartbeatInterval)
		assert.Equal(t, "flag-queue", cfg.Temporal.TaskQueue)
		assert.Equal(t, config.SourceCLI, config.ManagerFromContext(cmd.Context()).Service.GetSource("temporal.task_queue"))
	})

	t.Run("Should reject an env file outside the working directory", func(t *testing.T) {
		cmd := RootCmd(testRegistry(t))
		require.NoError(t, cmd.ParseFlags([]string{"--env-file", "/etc/passwd"}))
		assert.ErrorContains(t, SetupGlobalConfig(cmd), "outside the project directory")
	})
}

func TestCommands(t *testing.T) {
	run := func(t *testing.T, args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := RootCmd(testRegistry(t))
		cmd.SetOut(&out)
		cmd.SetArgs(append(args, "--env-file", "", "--config", "", "--log-level", "disabled"))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	t.Run("Should list registered tasks", func(t *testing.T) {
		out := run(t, "workflows")
		assert.Contains(t, out, "etl")
		assert.Contains(t, out, "extract")
		assert.Contains(t, out, "blocking")
	})

	t.Run("Should show configuration with sources", func(t *testing.T) {
		out := run(t, "config", "show", "--sources", "--project", "shown")
		assert.Contains(t, out, "project.name")
		assert.Contains(t, out, "shown")
		assert.Contains(t, out, "MOOSE_PROJECT_NAME")
		assert.Contains(t, out, "5s")
	})

	t.Run("Should show configuration as YAML", func(t *testing.T) {
		out := run(t, "config", "show", "--format", "yaml")
		assert.Contains(t, out, "host_port:")
		assert.Contains(t, out, "localhost:7233")
	})

	t.Run("Should validate configuration", func(t *testing.T) {
		assert.Contains(t, run(t, "config", "validate"), "Configuration is valid")
	})
}

func TestIsPathWithinDirectory(t *testing.T) {
	t.Run("Should detect paths inside and outside a directory", func(t *testing.T) {
		dir := t.TempDir()
		assert.True(t, isPathWithinDirectory(filepath.Join(dir, ".env"), dir))
		assert.True(t, isPathWithinDirectory(dir, dir))
		assert.False(t, isPathWithinDirectory(filepath.Dir(dir), dir))
	})
}
