// Package queue carries run deliveries between the trigger side and workers.
package queue

import "context"

// DefaultConcurrency bounds how many deliveries a consumer processes at once.
const DefaultConcurrency = 5

// Delivery tells a worker which run to advance. The run id doubles as the
// job id, so re-publishing the same run collapses into one pending delivery
// on backends that support dedupe.
type Delivery struct {
	WorkflowRunID string `json:"workflowRunId"`
}

// Callback handles one delivery. Returning an error leaves redelivery to the
// backend or the redelivery sweep; the consumer keeps going either way.
type Callback func(ctx context.Context, delivery Delivery) error

type Queue interface {
	Publish(ctx context.Context, delivery Delivery) error

	// Consume starts delivering messages to the callback until the context is
	// cancelled or Close is called. It does not block.
	Consume(ctx context.Context, callback Callback) error

	Close(ctx context.Context) error
}
