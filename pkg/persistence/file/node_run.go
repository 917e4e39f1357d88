package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/google/uuid"
)

const nodeRunsDir = "node_runs"

// NodeRunRepository stores node runs as one JSON file per (run, node) pair,
// which structurally enforces the single-record-per-pair invariant.
type NodeRunRepository struct {
	store *Persistence
}

func (r *NodeRunRepository) ListByRun(ctx context.Context, workflowRunID string) ([]*models.NodeRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kind := filepath.Join(nodeRunsDir, workflowRunID)

	nodeIDs, err := r.store.list(kind)
	if err != nil {
		return nil, err
	}

	nodeRuns := make([]*models.NodeRun, 0, len(nodeIDs))

	for _, nodeID := range nodeIDs {
		var nodeRun models.NodeRun

		err := r.store.read(kind, nodeID, &nodeRun)
		if err != nil {
			return nil, fmt.Errorf("failed to read node run %s/%s: %w", workflowRunID, nodeID, err)
		}

		nodeRuns = append(nodeRuns, &nodeRun)
	}

	sort.Slice(nodeRuns, func(i, j int) bool {
		return nodeRuns[i].StartedAt.Before(nodeRuns[j].StartedAt)
	})

	return nodeRuns, nil
}

func (r *NodeRunRepository) Create(ctx context.Context, nodeRun *models.NodeRun) error {
	if nodeRun.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate node run ID: %w", err)
		}

		nodeRun.ID = id.String()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kind := filepath.Join(nodeRunsDir, nodeRun.WorkflowRunID)

	var existing models.NodeRun
	if r.store.read(kind, nodeRun.NodeID, &existing) == nil {
		return persistence.ErrNodeRunExists
	}

	return r.store.write(kind, nodeRun.NodeID, nodeRun)
}

func (r *NodeRunRepository) Update(ctx context.Context, nodeRun *models.NodeRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kind := filepath.Join(nodeRunsDir, nodeRun.WorkflowRunID)

	var existing models.NodeRun
	if r.store.read(kind, nodeRun.NodeID, &existing) != nil {
		return persistence.ErrNodeRunNotFound
	}

	return r.store.write(kind, nodeRun.NodeID, nodeRun)
}
