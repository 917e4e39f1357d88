// Package models defines the core domain models for node-based workflow execution.
package models

import (
	"encoding/json"
	"time"
)

// Workflow is the persisted, user-authored graph. Nodes and edges are stored
// as untyped JSON and parsed/validated when a run is advanced; the graph is
// immutable for the duration of a run once loaded.
type Workflow struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"       validate:"required,min=1"`
	Nodes     json.RawMessage `json:"nodes"`
	Edges     json.RawMessage `json:"edges"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// WorkflowRun is one execution instance of a workflow. It owns the set of
// NodeRuns for its id and carries the advisory lock fields used to ensure a
// single worker advances the run at a time. LockedAt and LockedBy are either
// both set or both absent.
type WorkflowRun struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"    validate:"required"`
	Status        RunStatus      `json:"status"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ErrorMetadata map[string]any `json:"error_metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	LockedAt      *time.Time     `json:"locked_at,omitempty"`
	LockedBy      string         `json:"locked_by,omitempty"`
}
