package workflow

import "errors"

var (
	// ErrPermanentNodeFailure is returned when a node has exhausted its retry
	// budget and may not be attempted again.
	ErrPermanentNodeFailure = errors.New("node failed permanently")
	// ErrMaxIterationsExceeded is returned when the orchestration loop hits its
	// pass cap without the runnable set draining.
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")
)
