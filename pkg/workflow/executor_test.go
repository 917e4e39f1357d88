package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRun(t *testing.T, nodes, edges string) (*file.Persistence, *models.WorkflowRun) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	wf := &models.Workflow{
		Name:  "test workflow",
		Nodes: json.RawMessage(nodes),
		Edges: json.RawMessage(edges),
	}
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	run := &models.WorkflowRun{WorkflowID: wf.ID}
	require.NoError(t, store.WorkflowRunRepository().Create(ctx, run))

	return store, run
}

func newExecutor(store persistence.Persistence, reg *registry.Registry) *workflow.Executor {
	locks := lock.NewManager(store.WorkflowRunRepository(), slog.Default())

	return workflow.NewExecutor(store, locks, reg, "worker-test", slog.Default())
}

func TestExecutor_AdvanceCompletesLinearRun(t *testing.T) {
	ctx := context.Background()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"version": "1.4.2"}`))
	}))
	defer apiServer.Close()

	discordCalls := 0

	var discordPayload map[string]string

	discordServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		discordCalls++

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &discordPayload))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer discordServer.Close()

	nodes := `[
		{"id": "trigger-1", "type": "manualTrigger", "data": {"payload": {"ref": "main"}}},
		{"id": "http-1", "type": "http", "data": {"url": "` + apiServer.URL + `"}},
		{"id": "discord-1", "type": "discord", "data": {
			"webhookUrl": "` + discordServer.URL + `",
			"message": "deployed {http-1.body.version}"
		}}
	]`
	edges := `[
		{"id": "e1", "source": "trigger-1", "target": "http-1"},
		{"id": "e2", "source": "http-1", "target": "discord-1"}
	]`

	store, run := setupRun(t, nodes, edges)
	executor := newExecutor(store, registry.NewRegistry())

	require.NoError(t, executor.Advance(ctx, run.ID))

	assert.Equal(t, "deployed 1.4.2", discordPayload["content"])

	finalRun, err := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusComplete, finalRun.Status)
	assert.NotNil(t, finalRun.FinishedAt)
	assert.Nil(t, finalRun.LockedAt)

	nodeRuns, err := store.NodeRunRepository().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, nodeRuns, 3)

	for _, nodeRun := range nodeRuns {
		assert.Equal(t, models.NodeStatusSuccess, nodeRun.Status)
		assert.Equal(t, 0, nodeRun.RetryCount)
	}

	// Advancing a finished run changes nothing and repeats no side effects.
	require.NoError(t, executor.Advance(ctx, run.ID))
	assert.Equal(t, 1, discordCalls)
}

func TestExecutor_AdvanceFailingNodeFinalizesError(t *testing.T) {
	ctx := context.Background()

	nodes := `[
		{"id": "trigger-1", "type": "manualTrigger", "data": {}},
		{"id": "http-1", "type": "http", "data": {"url": "http://example.invalid"}},
		{"id": "discord-1", "type": "discord", "data": {"message": "never sent"}}
	]`
	edges := `[
		{"id": "e1", "source": "trigger-1", "target": "http-1"},
		{"id": "e2", "source": "http-1", "target": "discord-1"}
	]`

	store, run := setupRun(t, nodes, edges)

	reg := registry.NewRegistry()
	reg.Register(models.NodeTypeHTTP, handlerFunc(
		func(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
			return nil, errors.New("connection refused")
		}))

	executor := newExecutor(store, reg)

	// Node failures are not engine failures; the run finalizes as Error.
	require.NoError(t, executor.Advance(ctx, run.ID))

	finalRun, err := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusError, finalRun.Status)
	assert.NotNil(t, finalRun.FinishedAt)

	nodeRuns, err := store.NodeRunRepository().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, nodeRuns, 2)

	byNode := make(map[string]*models.NodeRun)
	for _, nodeRun := range nodeRuns {
		byNode[nodeRun.NodeID] = nodeRun
	}

	assert.Equal(t, models.NodeStatusSuccess, byNode["trigger-1"].Status)

	require.Contains(t, byNode, "http-1")
	assert.Equal(t, models.NodeStatusFailed, byNode["http-1"].Status)
	assert.Equal(t, models.MaxNodeRetries, byNode["http-1"].RetryCount)
	assert.Contains(t, byNode["http-1"].Error, "connection refused")

	// The node behind the failure never started.
	assert.NotContains(t, byNode, "discord-1")
}

func TestExecutor_AdvanceSelfEdgeCompletesVacuously(t *testing.T) {
	ctx := context.Background()

	nodes := `[{"id": "loop", "type": "manualTrigger", "data": {}}]`
	edges := `[{"id": "e1", "source": "loop", "target": "loop"}]`

	store, run := setupRun(t, nodes, edges)
	executor := newExecutor(store, registry.NewRegistry())

	require.NoError(t, executor.Advance(ctx, run.ID))

	finalRun, err := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusComplete, finalRun.Status)

	nodeRuns, err := store.NodeRunRepository().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, nodeRuns)
}

func TestExecutor_AdvanceSkipsLockedRun(t *testing.T) {
	ctx := context.Background()

	nodes := `[{"id": "trigger-1", "type": "manualTrigger", "data": {}}]`

	store, run := setupRun(t, nodes, `[]`)

	locks := lock.NewManager(store.WorkflowRunRepository(), slog.Default())

	acquired, err := locks.Acquire(ctx, run.ID, "worker-other")
	require.NoError(t, err)
	require.True(t, acquired)

	executor := newExecutor(store, registry.NewRegistry())

	require.NoError(t, executor.Advance(ctx, run.ID))

	finalRun, err := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, finalRun.Status)
	assert.Equal(t, "worker-other", finalRun.LockedBy)

	nodeRuns, err := store.NodeRunRepository().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, nodeRuns)
}

func TestExecutor_AdvanceInvalidGraphFinalizesError(t *testing.T) {
	ctx := context.Background()

	nodes := `[{"id": "x", "type": "teleport", "data": {}}]`

	store, run := setupRun(t, nodes, `[]`)
	executor := newExecutor(store, registry.NewRegistry())

	err := executor.Advance(ctx, run.ID)
	require.Error(t, err)

	finalRun, getErr := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.RunStatusError, finalRun.Status)
	require.NotNil(t, finalRun.ErrorMetadata)
	assert.Contains(t, finalRun.ErrorMetadata["message"], "invalid workflow graph")
	assert.Nil(t, finalRun.LockedAt)
}

// amnesiacNodeRuns forgets every record, so the same node stays runnable in
// every pass and the loop can only stop at its iteration cap.
type amnesiacNodeRuns struct{}

func (amnesiacNodeRuns) ListByRun(_ context.Context, _ string) ([]*models.NodeRun, error) {
	return nil, nil
}

func (amnesiacNodeRuns) Create(_ context.Context, _ *models.NodeRun) error { return nil }

func (amnesiacNodeRuns) Update(_ context.Context, _ *models.NodeRun) error { return nil }

type amnesiacPersistence struct {
	persistence.Persistence
}

func (amnesiacPersistence) NodeRunRepository() persistence.NodeRunRepository {
	return amnesiacNodeRuns{}
}

func TestExecutor_AdvanceStopsAtIterationCap(t *testing.T) {
	ctx := context.Background()

	nodes := `[{"id": "trigger-1", "type": "manualTrigger", "data": {}}]`

	store, run := setupRun(t, nodes, `[]`)

	executor := newExecutor(amnesiacPersistence{store}, registry.NewRegistry())
	executor.MaxIterations = 5

	err := executor.Advance(ctx, run.ID)

	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrMaxIterationsExceeded)

	finalRun, getErr := store.WorkflowRunRepository().GetByID(ctx, run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.RunStatusError, finalRun.Status)
	require.NotNil(t, finalRun.ErrorMetadata)
	assert.Contains(t, finalRun.ErrorMetadata["message"], "max iterations")
}
