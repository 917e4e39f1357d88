package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowRunNotFound indicates a workflow run was not found by the given identifier.
	ErrWorkflowRunNotFound = errors.New("workflow run not found")

	// ErrNodeRunNotFound indicates a node run was not found by the given identifier.
	ErrNodeRunNotFound = errors.New("node run not found")

	// ErrNodeRunExists indicates a node run already exists for the (run, node) pair.
	ErrNodeRunExists = errors.New("node run already exists")
)

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowRunNotFound checks if an error indicates a workflow run was not found.
func IsWorkflowRunNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowRunNotFound)
}
