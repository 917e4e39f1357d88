package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/google/uuid"
)

// NodeRunRepository handles node-run database operations. The unique
// (workflow_run_id, node_id) constraint enforces the one-record-per-pair
// invariant at the storage level.
type NodeRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNodeRunRepository creates a new node run repository.
func NewNodeRunRepository(db *sql.DB, logger *slog.Logger) *NodeRunRepository {
	return &NodeRunRepository{db: db, logger: logger}
}

func (r *NodeRunRepository) ListByRun(ctx context.Context, workflowRunID string) ([]*models.NodeRun, error) {
	query := `
		SELECT
			id
		  , workflow_run_id
		  , node_id
		  , node_type
		  , status
		  , retry_count
		  , started_at
		  , completed_at
		  , output
		  , error
		FROM node_runs
		WHERE workflow_run_id = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node runs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodeRuns := make([]*models.NodeRun, 0)

	for rows.Next() {
		nodeRun, err := scanNodeRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}

		nodeRuns = append(nodeRuns, nodeRun)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating node runs: %w", err)
	}

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

	outputJSON, err := marshalOutput(nodeRun.Output)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO node_runs (id, workflow_run_id, node_id, node_type, status, retry_count, started_at, completed_at, output, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
	`

	_, err = r.db.ExecContext(ctx, query,
		nodeRun.ID, nodeRun.WorkflowRunID, nodeRun.NodeID, string(nodeRun.NodeType),
		string(nodeRun.Status), nodeRun.RetryCount, nodeRun.StartedAt, nodeRun.CompletedAt,
		outputJSON, nodeRun.Error)
	if err != nil {
		return fmt.Errorf("failed to create node run: %w", err)
	}

	return nil
}

func (r *NodeRunRepository) Update(ctx context.Context, nodeRun *models.NodeRun) error {
	outputJSON, err := marshalOutput(nodeRun.Output)
	if err != nil {
		return err
	}

	query := `
		UPDATE node_runs
		SET status = $2, retry_count = $3, started_at = $4, completed_at = $5, output = $6, error = NULLIF($7, '')
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		nodeRun.ID, string(nodeRun.Status), nodeRun.RetryCount,
		nodeRun.StartedAt, nodeRun.CompletedAt, outputJSON, nodeRun.Error)
	if err != nil {
		return fmt.Errorf("failed to update node run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrNodeRunNotFound
	}

	return nil
}

func marshalOutput(output any) (any, error) {
	if output == nil {
		return nil, nil
	}

	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node run output: %w", err)
	}

	return data, nil
}

func scanNodeRun(row rowScanner) (*models.NodeRun, error) {
	var (
		nodeRun     models.NodeRun
		nodeType    string
		status      string
		completedAt sql.NullTime
		output      []byte
		errorMsg    sql.NullString
	)

	err := row.Scan(&nodeRun.ID, &nodeRun.WorkflowRunID, &nodeRun.NodeID, &nodeType,
		&status, &nodeRun.RetryCount, &nodeRun.StartedAt, &completedAt, &output, &errorMsg)
	if err != nil {
		return nil, err
	}

	nodeRun.NodeType = models.NodeType(nodeType)
	nodeRun.Status = models.NodeStatus(status)
	nodeRun.Error = errorMsg.String

	if completedAt.Valid {
		nodeRun.CompletedAt = &completedAt.Time
	}

	if len(output) > 0 {
		err = json.Unmarshal(output, &nodeRun.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal node run output: %w", err)
		}
	}

	return &nodeRun, nil
}
