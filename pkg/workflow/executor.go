// Package workflow implements the run execution engine: dependency
// resolution, node attempt lifecycle and the bounded orchestration loop.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/graph"
	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/registry"
)

// DefaultMaxIterations caps the orchestration loop. A well-formed graph
// drains long before this; the cap only guards against resolver bugs.
const DefaultMaxIterations = 1000

// Executor advances workflow runs to completion under an advisory lock.
type Executor struct {
	persistence persistence.Persistence
	locks       *lock.Manager
	runner      *Runner
	workerID    string
	logger      *slog.Logger

	// MaxIterations bounds the number of resolver passes per Advance call.
	MaxIterations int
}

func NewExecutor(store persistence.Persistence, locks *lock.Manager, reg *registry.Registry, workerID string, logger *slog.Logger) *Executor {
	return &Executor{
		persistence:   store,
		locks:         locks,
		runner:        NewRunner(store.NodeRunRepository(), reg, logger),
		workerID:      workerID,
		logger:        logger.With("module", "executor"),
		MaxIterations: DefaultMaxIterations,
	}
}

// Advance executes a workflow run until no node is runnable, then finalizes
// it. When another worker holds the run's lock this is a silent no-op. Any
// fatal error finalizes the run as Error before being returned, and the lock
// is released either way.
func (e *Executor) Advance(ctx context.Context, runID string) error {
	acquired, err := e.locks.Acquire(ctx, runID, e.workerID)
	if err != nil {
		return fmt.Errorf("failed to acquire lock for run %s: %w", runID, err)
	}

	if !acquired {
		e.logger.InfoContext(ctx, "run is locked by another worker, skipping",
			"workflow_run_id", runID)

		return nil
	}

	defer func() {
		err := e.locks.Release(ctx, runID)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to release run lock",
				"workflow_run_id", runID, "error", err)
		}
	}()

	err = e.execute(ctx, runID)
	if err != nil {
		e.logger.ErrorContext(ctx, "run execution failed",
			"workflow_run_id", runID, "error", err)

		finalizeErr := e.persistence.WorkflowRunRepository().Finalize(ctx, runID,
			models.RunStatusError, time.Now().UTC(), map[string]any{"message": err.Error()})
		if finalizeErr != nil {
			e.logger.ErrorContext(ctx, "failed to finalize run after error",
				"workflow_run_id", runID, "error", finalizeErr)
		}

		return err
	}

	return nil
}

func (e *Executor) execute(ctx context.Context, runID string) error {
	run, err := e.persistence.WorkflowRunRepository().GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load workflow run: %w", err)
	}

	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", run.WorkflowID, err)
	}

	nodes, err := graph.ParseNodes(wf.Nodes)
	if err != nil {
		return err
	}

	edges, err := graph.ParseEdges(wf.Edges)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "starting run execution",
		"workflow_run_id", runID, "nodes", len(nodes), "edges", len(edges))

	nodeRunRepo := e.persistence.NodeRunRepository()
	drained := false

	for iteration := 1; iteration <= e.MaxIterations; iteration++ {
		nodeRuns, err := nodeRunRepo.ListByRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to list node runs: %w", err)
		}

		runnable := FindRunnableNodes(nodes, edges, nodeRuns)

		e.logger.DebugContext(ctx, "resolver pass",
			"workflow_run_id", runID, "iteration", iteration, "runnable", len(runnable))

		if len(runnable) == 0 {
			drained = true

			break
		}

		for _, node := range runnable {
			err := e.runner.ExecuteNode(ctx, runID, node, nodeRuns)
			if err != nil {
				// A failed node does not stop the pass; its siblings still run
				// and the resolver decides what remains reachable.
				e.logger.ErrorContext(ctx, "node execution failed",
					"workflow_run_id", runID, "node_id", node.ID, "error", err)
			}
		}
	}

	if !drained {
		return fmt.Errorf("%w: run %s did not drain within %d passes",
			ErrMaxIterationsExceeded, runID, e.MaxIterations)
	}

	finalNodeRuns, err := nodeRunRepo.ListByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list node runs for finalization: %w", err)
	}

	status := models.RunStatusComplete

	for _, nodeRun := range finalNodeRuns {
		if nodeRun.Status == models.NodeStatusFailed {
			status = models.RunStatusError

			break
		}
	}

	err = e.persistence.WorkflowRunRepository().Finalize(ctx, runID, status, time.Now().UTC(), nil)
	if err != nil {
		return fmt.Errorf("failed to finalize workflow run: %w", err)
	}

	e.logger.InfoContext(ctx, "run finished",
		"workflow_run_id", runID, "status", status)

	return nil
}
