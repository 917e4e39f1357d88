package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFunc func(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error)

func (f handlerFunc) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	return f(ctx, node, runMetadata, logger)
}

func setupRunner(t *testing.T, reg *registry.Registry) (*workflow.Runner, persistence.NodeRunRepository) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	repo := store.NodeRunRepository()

	return workflow.NewRunner(repo, reg, slog.Default()), repo
}

func TestRunner_ExecuteNodeSuccess(t *testing.T) {
	ctx := context.Background()

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeManualTrigger, handlerFunc(
		func(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
			return map[string]any{"success": true, "payload": "hi"}, nil
		}))

	runner, repo := setupRunner(t, reg)

	err := runner.ExecuteNode(ctx, "run-1", node("t"), nil)
	require.NoError(t, err)

	nodeRuns, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, nodeRuns, 1)

	assert.Equal(t, models.NodeStatusSuccess, nodeRuns[0].Status)
	assert.Equal(t, 0, nodeRuns[0].RetryCount)
	assert.NotNil(t, nodeRuns[0].CompletedAt)
	assert.Equal(t, map[string]any{"success": true, "payload": "hi"}, nodeRuns[0].Output)
}

func TestRunner_ExecuteNodeFailureRecordsError(t *testing.T) {
	ctx := context.Background()

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeManualTrigger, handlerFunc(
		func(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
			return nil, errors.New("webhook exploded")
		}))

	runner, repo := setupRunner(t, reg)

	err := runner.ExecuteNode(ctx, "run-1", node("t"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook exploded")

	nodeRuns, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, nodeRuns, 1)

	assert.Equal(t, models.NodeStatusFailed, nodeRuns[0].Status)
	assert.Equal(t, 0, nodeRuns[0].RetryCount)
	assert.Contains(t, nodeRuns[0].Error, "webhook exploded")
}

func TestRunner_ExecuteNodeRetriesIncrementCount(t *testing.T) {
	ctx := context.Background()

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeManualTrigger, handlerFunc(
		func(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
			return nil, errors.New("still broken")
		}))

	runner, repo := setupRunner(t, reg)

	for attempt := 0; attempt < models.MaxNodeRetries+1; attempt++ {
		existing, err := repo.ListByRun(ctx, "run-1")
		require.NoError(t, err)

		err = runner.ExecuteNode(ctx, "run-1", node("t"), existing)
		require.Error(t, err)
	}

	nodeRuns, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, nodeRuns, 1)
	assert.Equal(t, models.MaxNodeRetries, nodeRuns[0].RetryCount)

	// The retry budget is spent; the next attempt is refused outright.
	existing, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)

	err = runner.ExecuteNode(ctx, "run-1", node("t"), existing)
	assert.ErrorIs(t, err, workflow.ErrPermanentNodeFailure)

	nodeRuns, err = repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.MaxNodeRetries, nodeRuns[0].RetryCount)
}

func TestRunner_ExecuteNodeSucceededIsNoOp(t *testing.T) {
	ctx := context.Background()

	calls := 0

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeManualTrigger, handlerFunc(
		func(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
			calls++

			return map[string]any{"success": true}, nil
		}))

	runner, repo := setupRunner(t, reg)

	completedAt := time.Now().UTC()
	existing := []*models.NodeRun{{
		ID:            "nr-1",
		WorkflowRunID: "run-1",
		NodeID:        "t",
		NodeType:      models.NodeTypeManualTrigger,
		Status:        models.NodeStatusSuccess,
		CompletedAt:   &completedAt,
	}}

	err := runner.ExecuteNode(ctx, "run-1", node("t"), existing)
	require.NoError(t, err)
	assert.Zero(t, calls)

	nodeRuns, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, nodeRuns)
}

func TestRunner_ExecuteNodePassesRunMetadata(t *testing.T) {
	ctx := context.Background()

	var seen map[string]any

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeManualTrigger, handlerFunc(
		func(_ context.Context, _ models.Node, runMetadata map[string]any, _ *slog.Logger) (any, error) {
			seen = runMetadata

			return map[string]any{"success": true}, nil
		}))

	runner, _ := setupRunner(t, reg)

	existing := []*models.NodeRun{
		{NodeID: "upstream", Status: models.NodeStatusSuccess, Output: map[string]any{"version": "1.4.2"}},
		{NodeID: "broken", Status: models.NodeStatusFailed, Output: map[string]any{"noise": true}},
	}

	err := runner.ExecuteNode(ctx, "run-1", node("t"), existing)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"upstream": map[string]any{"version": "1.4.2"},
	}, seen)
}
