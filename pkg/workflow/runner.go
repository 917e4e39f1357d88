package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/registry"
)

// Runner drives the lifecycle of a single node attempt: claim or create the
// NodeRun record, dispatch to the type's handler, and persist the outcome.
type Runner struct {
	nodeRuns persistence.NodeRunRepository
	registry *registry.Registry
	logger   *slog.Logger
}

func NewRunner(nodeRuns persistence.NodeRunRepository, reg *registry.Registry, logger *slog.Logger) *Runner {
	return &Runner{
		nodeRuns: nodeRuns,
		registry: reg,
		logger:   logger.With("module", "runner"),
	}
}

// ExecuteNode runs one attempt of a node. existing is the node-run snapshot
// the current pass was planned from; successful outputs in it become the
// template metadata for this attempt. Already-succeeded nodes are a no-op,
// exhausted ones an error.
func (r *Runner) ExecuteNode(ctx context.Context, workflowRunID string, node models.Node, existing []*models.NodeRun) error {
	nodeRun := findNodeRun(existing, node.ID)

	switch {
	case nodeRun == nil:
		nodeRun = &models.NodeRun{
			WorkflowRunID: workflowRunID,
			NodeID:        node.ID,
			NodeType:      node.Type,
			Status:        models.NodeStatusRunning,
			RetryCount:    0,
			StartedAt:     time.Now().UTC(),
		}

		err := r.nodeRuns.Create(ctx, nodeRun)
		if err != nil {
			return fmt.Errorf("failed to create node run for %s: %w", node.ID, err)
		}

	case nodeRun.Status == models.NodeStatusSuccess:
		return nil

	case nodeRun.Exhausted():
		return fmt.Errorf("node %s after %d retries: %w", node.ID, nodeRun.RetryCount, ErrPermanentNodeFailure)

	default:
		nodeRun.Status = models.NodeStatusRunning
		nodeRun.RetryCount++
		nodeRun.StartedAt = time.Now().UTC()
		nodeRun.CompletedAt = nil
		nodeRun.Error = ""

		err := r.nodeRuns.Update(ctx, nodeRun)
		if err != nil {
			return fmt.Errorf("failed to mark node run %s running: %w", node.ID, err)
		}
	}

	output, execErr := r.dispatch(ctx, node, buildRunMetadata(existing))

	completedAt := time.Now().UTC()
	nodeRun.CompletedAt = &completedAt

	if execErr != nil {
		nodeRun.Status = models.NodeStatusFailed
		nodeRun.Error = execErr.Error()

		err := r.nodeRuns.Update(ctx, nodeRun)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to record node failure",
				"node_id", node.ID, "error", err, "node_error", execErr)
		}

		return fmt.Errorf("node %s execution failed: %w", node.ID, execErr)
	}

	nodeRun.Status = models.NodeStatusSuccess
	nodeRun.Output = output

	err := r.nodeRuns.Update(ctx, nodeRun)
	if err != nil {
		return fmt.Errorf("failed to record node success for %s: %w", node.ID, err)
	}

	return nil
}

func (r *Runner) dispatch(ctx context.Context, node models.Node, runMetadata map[string]any) (any, error) {
	handler, err := r.registry.Handler(node.Type)
	if err != nil {
		return nil, err
	}

	return handler.Execute(ctx, node, runMetadata, r.logger)
}

// buildRunMetadata collects the outputs of succeeded nodes, keyed by node id.
// Failed and skipped attempts contribute nothing.
func buildRunMetadata(nodeRuns []*models.NodeRun) map[string]any {
	runMetadata := make(map[string]any)

	for _, nodeRun := range nodeRuns {
		if nodeRun.Status == models.NodeStatusSuccess && nodeRun.Output != nil {
			runMetadata[nodeRun.NodeID] = nodeRun.Output
		}
	}

	return runMetadata
}
