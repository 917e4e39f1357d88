package workflow_test

import (
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string) models.Node {
	return models.Node{ID: id, Type: models.NodeTypeManualTrigger, Data: map[string]any{}}
}

func edge(source, target string) models.Edge {
	return models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func nodeIDs(nodes []models.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	return ids
}

func TestFindRunnableNodes_NoRecordsRunsRoots(t *testing.T) {
	nodes := []models.Node{node("a"), node("b"), node("c")}
	edges := []models.Edge{edge("a", "b"), edge("b", "c")}

	runnable := workflow.FindRunnableNodes(nodes, edges, nil)

	assert.Equal(t, []string{"a"}, nodeIDs(runnable))
}

func TestFindRunnableNodes_DependencyUnlocksTarget(t *testing.T) {
	nodes := []models.Node{node("a"), node("b")}
	edges := []models.Edge{edge("a", "b")}

	nodeRuns := []*models.NodeRun{
		{NodeID: "a", Status: models.NodeStatusSuccess},
	}

	runnable := workflow.FindRunnableNodes(nodes, edges, nodeRuns)

	assert.Equal(t, []string{"b"}, nodeIDs(runnable))
}

func TestFindRunnableNodes_AndJoinWaitsForAllSources(t *testing.T) {
	nodes := []models.Node{node("a"), node("b"), node("c")}
	edges := []models.Edge{edge("a", "c"), edge("b", "c")}

	nodeRuns := []*models.NodeRun{
		{NodeID: "a", Status: models.NodeStatusSuccess},
	}

	runnable := workflow.FindRunnableNodes(nodes, edges, nodeRuns)
	assert.Equal(t, []string{"b"}, nodeIDs(runnable))

	nodeRuns = append(nodeRuns, &models.NodeRun{NodeID: "b", Status: models.NodeStatusSuccess})

	runnable = workflow.FindRunnableNodes(nodes, edges, nodeRuns)
	assert.Equal(t, []string{"c"}, nodeIDs(runnable))
}

func TestFindRunnableNodes_SkipsTerminalAndInFlight(t *testing.T) {
	nodes := []models.Node{node("done"), node("inflight"), node("exhausted"), node("retryable")}

	nodeRuns := []*models.NodeRun{
		{NodeID: "done", Status: models.NodeStatusSuccess},
		{NodeID: "inflight", Status: models.NodeStatusRunning},
		{NodeID: "exhausted", Status: models.NodeStatusFailed, RetryCount: models.MaxNodeRetries},
		{NodeID: "retryable", Status: models.NodeStatusFailed, RetryCount: 1},
	}

	runnable := workflow.FindRunnableNodes(nodes, nil, nodeRuns)

	assert.Equal(t, []string{"retryable"}, nodeIDs(runnable))
}

func TestFindRunnableNodes_FailedDependencyBlocksTarget(t *testing.T) {
	nodes := []models.Node{node("a"), node("b")}
	edges := []models.Edge{edge("a", "b")}

	nodeRuns := []*models.NodeRun{
		{NodeID: "a", Status: models.NodeStatusFailed, RetryCount: models.MaxNodeRetries},
	}

	runnable := workflow.FindRunnableNodes(nodes, edges, nodeRuns)

	assert.Empty(t, runnable)
}

func TestFindRunnableNodes_SelfEdgeNeverRunnable(t *testing.T) {
	nodes := []models.Node{node("loop")}
	edges := []models.Edge{edge("loop", "loop")}

	runnable := workflow.FindRunnableNodes(nodes, edges, nil)

	assert.Empty(t, runnable)
}

func TestFindRunnableNodes_DanglingEdgeSourceBlocksTarget(t *testing.T) {
	nodes := []models.Node{node("b")}
	edges := []models.Edge{edge("ghost", "b")}

	runnable := workflow.FindRunnableNodes(nodes, edges, nil)

	assert.Empty(t, runnable)
}

func TestFindRunnableNodes_DeclarationOrder(t *testing.T) {
	nodes := []models.Node{node("z"), node("a"), node("m")}

	runnable := workflow.FindRunnableNodes(nodes, nil, nil)

	require.Len(t, runnable, 3)
	assert.Equal(t, []string{"z", "a", "m"}, nodeIDs(runnable))
}
