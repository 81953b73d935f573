package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/514-labs/moosestack/engine/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTask(name string) *task.Definition {
	return &task.Definition{
		Name: name,
		Run: task.Async(func(context.Context, *task.Context) (any, error) {
			return nil, nil
		}),
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry, err := NewRegistry(&Config{Name: "etl", Tasks: []*task.Definition{noopTask("extract"), noopTask("load")}})
	require.NoError(t, err)

	t.Run("Should resolve a registered task", func(t *testing.T) {
		def, err := registry.Resolve("etl", "load")
		require.NoError(t, err)
		assert.Equal(t, "load", def.Name)
	})

	t.Run("Should fail for an unknown workflow", func(t *testing.T) {
		_, err := registry.Resolve("missing", "load")
		require.Error(t, err)
		assert.True(t, errors.Is(err, task.ErrResolution))
		assert.Equal(t, "Workflow missing not found", err.Error())
	})

	t.Run("Should fail for an unknown task", func(t *testing.T) {
		_, err := registry.Resolve("etl", "transform")
		require.Error(t, err)
		var resErr *task.ResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.Equal(t, "transform", resErr.TaskName)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("Should reject duplicate workflows", func(t *testing.T) {
		registry, err := NewRegistry(&Config{Name: "etl", Tasks: []*task.Definition{noopTask("a")}})
		require.NoError(t, err)
		err = registry.Register(&Config{Name: "etl", Tasks: []*task.Definition{noopTask("b")}})
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("Should reject duplicate tasks", func(t *testing.T) {
		_, err := NewRegistry(&Config{Name: "etl", Tasks: []*task.Definition{noopTask("a"), noopTask("a")}})
		assert.ErrorContains(t, err, "duplicate task a")
	})

	t.Run("Should reject invalid definitions", func(t *testing.T) {
		_, err := NewRegistry(&Config{Name: "etl", Tasks: []*task.Definition{{Name: "a"}}})
		assert.ErrorContains(t, err, "no run handler")
		_, err = NewRegistry(&Config{Tasks: []*task.Definition{noopTask("a")}})
		assert.ErrorContains(t, err, "name is required")
	})

	t.Run("Should list workflows sorted by name", func(t *testing.T) {
		registry, err := NewRegistry(
			&Config{Name: "b", Tasks: []*task.Definition{noopTask("x")}},
			&Config{Name: "a", Tasks: []*task.Definition{noopTask("y")}},
		)
		require.NoError(t, err)
		workflows := registry.Workflows()
		require.Len(t, workflows, 2)
		assert.Equal(t, "a", workflows[0].GetID())
		assert.Equal(t, "y", workflows[0].GetTasks()[0].Name)
	})
}
