package models

import "time"

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)

// MaxNodeRetries caps per-node retry attempts. A failed NodeRun whose
// RetryCount reached the cap is a terminal failure.
const MaxNodeRetries = 3

// NodeRun is the execution record for one node within one run. There is at
// most one NodeRun per (workflow run, node) pair: it is created on the first
// attempt and updated in place on retries. Status never regresses from
// success.
type NodeRun struct {
	ID            string     `json:"id"`
	WorkflowRunID string     `json:"workflow_run_id" validate:"required"`
	NodeID        string     `json:"node_id"         validate:"required"`
	NodeType      NodeType   `json:"node_type"`
	Status        NodeStatus `json:"status"`
	RetryCount    int        `json:"retry_count"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Output        any        `json:"output,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Exhausted reports whether the record is a terminal failure that must not be
// retried again.
func (nr *NodeRun) Exhausted() bool {
	return nr.Status == NodeStatusFailed && nr.RetryCount >= MaxNodeRetries
}
