package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/google/uuid"
)

const runsDir = "workflow_runs"

// WorkflowRunRepository stores workflow runs as JSON files. The store mutex
// makes TryLock an atomic check-and-update, mirroring the single conditional
// UPDATE the SQL backend issues.
type WorkflowRunRepository struct {
	store *Persistence
}

func (r *WorkflowRunRepository) Create(ctx context.Context, run *models.WorkflowRun) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow run ID: %w", err)
		}

		run.ID = id.String()
	}

	if run.Status == "" {
		run.Status = models.RunStatusPending
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(runsDir, run.ID, run)
}

func (r *WorkflowRunRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.get(id)
}

func (r *WorkflowRunRepository) Finalize(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time, errorMetadata map[string]any) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	run, err := r.get(id)
	if err != nil {
		return err
	}

	run.Status = status
	run.FinishedAt = &finishedAt

	if errorMetadata != nil {
		run.ErrorMetadata = errorMetadata
	}

	return r.store.write(runsDir, id, run)
}

func (r *WorkflowRunRepository) TryLock(ctx context.Context, id, workerID string, staleBefore time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	run, err := r.get(id)
	if err != nil {
		return false, err
	}

	if run.LockedAt != nil && !run.LockedAt.Before(staleBefore) {
		return false, nil
	}

	now := time.Now().UTC()
	run.LockedAt = &now
	run.LockedBy = workerID

	err = r.store.write(runsDir, id, run)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *WorkflowRunRepository) Unlock(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	run, err := r.get(id)
	if err != nil {
		return err
	}

	run.LockedAt = nil
	run.LockedBy = ""

	return r.store.write(runsDir, id, run)
}

func (r *WorkflowRunRepository) ListStalePending(ctx context.Context, createdBefore, lockStaleBefore time.Time) ([]*models.WorkflowRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids, err := r.store.list(runsDir)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.WorkflowRun, 0)

	for _, id := range ids {
		run, err := r.get(id)
		if err != nil {
			return nil, err
		}

		if run.Status != models.RunStatusPending || !run.CreatedAt.Before(createdBefore) {
			continue
		}

		if run.LockedAt != nil && !run.LockedAt.Before(lockStaleBefore) {
			continue
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs, nil
}

func (r *WorkflowRunRepository) get(id string) (*models.WorkflowRun, error) {
	var run models.WorkflowRun

	err := r.store.read(runsDir, id, &run)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowRunNotFound
		}

		return nil, fmt.Errorf("failed to read workflow run %s: %w", id, err)
	}

	return &run, nil
}
