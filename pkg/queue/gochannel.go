package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const gochannelTopic = "flowgrid.runs"

// GoChannelQueue is an in-memory transport for tests and local development.
// Publisher and subscriber share the same GoChannel instance.
type GoChannelQueue struct {
	pubSub      *gochannel.GoChannel
	concurrency int
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewGoChannelQueue(logger *slog.Logger) *GoChannelQueue {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
			Persistent:          false,
		},
		watermill.NewSlogLogger(logger),
	)

	return &GoChannelQueue{
		pubSub:      pubSub,
		concurrency: DefaultConcurrency,
		logger:      logger.With("module", "gochannel_queue"),
	}
}

func (q *GoChannelQueue) Publish(_ context.Context, delivery Delivery) error {
	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	err = q.pubSub.Publish(gochannelTopic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish delivery: %w", err)
	}

	return nil
}

func (q *GoChannelQueue) Consume(ctx context.Context, callback Callback) error {
	messages, err := q.pubSub.Subscribe(ctx, gochannelTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	q.wg.Add(1)

	go q.consume(ctx, messages, callback)

	return nil
}

func (q *GoChannelQueue) consume(ctx context.Context, messages <-chan *message.Message, callback Callback) {
	defer q.wg.Done()

	semaphore := make(chan struct{}, q.concurrency)

	for msg := range messages {
		var delivery Delivery

		err := json.Unmarshal(msg.Payload, &delivery)
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to unmarshal delivery", "error", err)
			msg.Ack()

			continue
		}

		semaphore <- struct{}{}

		q.wg.Add(1)

		go func(msg *message.Message, delivery Delivery) {
			defer q.wg.Done()
			defer func() { <-semaphore }()

			err := callback(ctx, delivery)
			if err != nil {
				q.logger.ErrorContext(ctx, "delivery handler failed",
					"workflow_run_id", delivery.WorkflowRunID, "error", err)
			}

			msg.Ack()
		}(msg, delivery)
	}
}

func (q *GoChannelQueue) Close(_ context.Context) error {
	err := q.pubSub.Close()
	if err != nil {
		return fmt.Errorf("failed to close gochannel pubsub: %w", err)
	}

	q.wg.Wait()

	return nil
}
