package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRunRepository handles workflow-run database operations, including
// the conditional update backing the advisory run lock.
type WorkflowRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRunRepository creates a new workflow run repository.
func NewWorkflowRunRepository(db *sql.DB, logger *slog.Logger) *WorkflowRunRepository {
	return &WorkflowRunRepository{db: db, logger: logger}
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

	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	query := `
		INSERT INTO workflow_runs (id, workflow_id, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query, run.ID, run.WorkflowID, string(run.Status), metadataJSON, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workflow run: %w", err)
	}

	return nil
}

func (r *WorkflowRunRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := selectRunQuery + " WHERE id = $1"

	run, err := scanWorkflowRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowRunNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow run: %w", err)
	}

	return run, nil
}

func (r *WorkflowRunRepository) Finalize(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time, errorMetadata map[string]any) error {
	var errorMetadataJSON any

	if errorMetadata != nil {
		data, err := json.Marshal(errorMetadata)
		if err != nil {
			return fmt.Errorf("failed to marshal error metadata: %w", err)
		}

		errorMetadataJSON = data
	}

	query := `
		UPDATE workflow_runs
		SET status = $2, finished_at = $3, error_metadata = COALESCE($4, error_metadata)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), finishedAt, errorMetadataJSON)
	if err != nil {
		return fmt.Errorf("failed to finalize workflow run: %w", err)
	}

	return ensureRowAffected(result)
}

// TryLock is a single conditional UPDATE, not a read-then-write: two workers
// racing on a freshly unlocked run cannot both see it as free.
func (r *WorkflowRunRepository) TryLock(ctx context.Context, id, workerID string, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE workflow_runs
		SET locked_at = NOW(), locked_by = $2
		WHERE id = $1 AND (locked_at IS NULL OR locked_at < $3)
	`

	result, err := r.db.ExecContext(ctx, query, id, workerID, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to lock workflow run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *WorkflowRunRepository) Unlock(ctx context.Context, id string) error {
	query := `
		UPDATE workflow_runs
		SET locked_at = NULL, locked_by = NULL
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to unlock workflow run: %w", err)
	}

	return ensureRowAffected(result)
}

func (r *WorkflowRunRepository) ListStalePending(ctx context.Context, createdBefore, lockStaleBefore time.Time) ([]*models.WorkflowRun, error) {
	query := selectRunQuery + `
		WHERE status = 'pending'
		  AND created_at < $1
		  AND (locked_at IS NULL OR locked_at < $2)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, createdBefore, lockStaleBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending runs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow runs: %w", err)
	}

	return runs, nil
}

const selectRunQuery = `
	SELECT
		id
	  , workflow_id
	  , status
	  , metadata
	  , error_metadata
	  , created_at
	  , finished_at
	  , locked_at
	  , locked_by
	FROM workflow_runs
`

func scanWorkflowRun(row rowScanner) (*models.WorkflowRun, error) {
	var (
		run           models.WorkflowRun
		status        string
		metadata      []byte
		errorMetadata []byte
		finishedAt    sql.NullTime
		lockedAt      sql.NullTime
		lockedBy      sql.NullString
	)

	err := row.Scan(&run.ID, &run.WorkflowID, &status, &metadata, &errorMetadata,
		&run.CreatedAt, &finishedAt, &lockedAt, &lockedBy)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &run.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal run metadata: %w", err)
		}
	}

	if len(errorMetadata) > 0 {
		err = json.Unmarshal(errorMetadata, &run.ErrorMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal run error metadata: %w", err)
		}
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	if lockedAt.Valid {
		run.LockedAt = &lockedAt.Time
	}

	run.LockedBy = lockedBy.String

	return &run, nil
}

func ensureRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowRunNotFound
	}

	return nil
}
