// Package persistence provides the data storage abstraction for workflows,
// workflow runs and node runs.
package persistence

import (
	"context"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	WorkflowRunRepository() WorkflowRunRepository
	NodeRunRepository() NodeRunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

type WorkflowRunRepository interface {
	Create(ctx context.Context, run *models.WorkflowRun) error
	GetByID(ctx context.Context, id string) (*models.WorkflowRun, error)

	// Finalize records the terminal status of a run together with its finish
	// timestamp and, for failures, structured error metadata.
	Finalize(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time, errorMetadata map[string]any) error

	// TryLock performs the single conditional update backing the advisory run
	// lock: it sets locked_at/locked_by and reports true only when the run is
	// unlocked or its lock is older than staleBefore. There is deliberately no
	// read-then-write variant.
	TryLock(ctx context.Context, id, workerID string, staleBefore time.Time) (bool, error)

	// Unlock unconditionally clears the lock fields.
	Unlock(ctx context.Context, id string) error

	// ListStalePending returns pending runs created before the cutoff whose
	// lock is absent or stale, for redelivery sweeps.
	ListStalePending(ctx context.Context, createdBefore, lockStaleBefore time.Time) ([]*models.WorkflowRun, error)
}

type NodeRunRepository interface {
	ListByRun(ctx context.Context, workflowRunID string) ([]*models.NodeRun, error)
	Create(ctx context.Context, nodeRun *models.NodeRun) error
	Update(ctx context.Context, nodeRun *models.NodeRun) error
}
