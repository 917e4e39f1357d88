package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// StaleLockThreshold is how long a held lock stays valid. A worker that dies
// mid-run leaves its lock behind; after this long another worker may claim it.
const StaleLockThreshold = 5 * time.Minute

// Manager provides advisory locking for workflow runs on top of the
// run repository's conditional lock update.
type Manager struct {
	runs   persistence.WorkflowRunRepository
	logger *slog.Logger
}

func NewManager(runs persistence.WorkflowRunRepository, logger *slog.Logger) *Manager {
	return &Manager{
		runs:   runs,
		logger: logger.With("module", "lock"),
	}
}

// Acquire attempts to take the lock on a run for the given worker. It returns
// false when another worker holds a fresh lock. Locks older than
// StaleLockThreshold are treated as abandoned and may be taken over.
func (m *Manager) Acquire(ctx context.Context, runID, workerID string) (bool, error) {
	staleBefore := time.Now().UTC().Add(-StaleLockThreshold)

	acquired, err := m.runs.TryLock(ctx, runID, workerID, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}

	if acquired {
		m.logger.DebugContext(ctx, "acquired run lock", "workflow_run_id", runID, "worker_id", workerID)
	} else {
		m.logger.DebugContext(ctx, "run lock held elsewhere", "workflow_run_id", runID, "worker_id", workerID)
	}

	return acquired, nil
}

// Release clears the lock on a run. Safe to call for runs the worker no
// longer holds; the run simply becomes available either way.
func (m *Manager) Release(ctx context.Context, runID string) error {
	err := m.runs.Unlock(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}

	m.logger.DebugContext(ctx, "released run lock", "workflow_run_id", runID)

	return nil
}

// IsLocked reports whether a run currently holds a fresh lock, without
// mutating lock state.
func (m *Manager) IsLocked(ctx context.Context, runID string) (bool, error) {
	run, err := m.runs.GetByID(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("failed to load workflow run: %w", err)
	}

	if run.LockedAt == nil {
		return false, nil
	}

	staleBefore := time.Now().UTC().Add(-StaleLockThreshold)

	return !run.LockedAt.Before(staleBefore), nil
}
