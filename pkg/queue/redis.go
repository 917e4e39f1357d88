package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisPopTimeout = 1 * time.Second
	dedupeTTL       = 24 * time.Hour
)

// RedisQueue is the production transport: a Redis list popped with BLPop,
// with a SETNX key per run id so a run waiting in the queue is not enqueued
// twice.
type RedisQueue struct {
	client      redis.UniversalClient
	queueKey    string
	concurrency int
	logger      *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string

	// Concurrency bounds parallel callback executions. Zero means
	// DefaultConcurrency.
	Concurrency int
}

func NewRedisQueue(ctx context.Context, config RedisConfig, logger *slog.Logger) (*RedisQueue, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = "flowgrid:runs"
	}

	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With("module", "redis_queue", "queue", config.Queue)
	logger.InfoContext(ctx, "connected to Redis", "addr", config.Addr, "db", config.DB)

	return &RedisQueue{
		client:      client,
		queueKey:    config.Queue,
		concurrency: config.Concurrency,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}, nil
}

// Publish enqueues a delivery unless the same run is already waiting.
func (q *RedisQueue) Publish(ctx context.Context, delivery Delivery) error {
	dedupeKey := q.queueKey + ":dedupe:" + delivery.WorkflowRunID

	fresh, err := q.client.SetNX(ctx, dedupeKey, "1", dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to set dedupe key: %w", err)
	}

	if !fresh {
		q.logger.InfoContext(ctx, "run already enqueued, skipping publish",
			"workflow_run_id", delivery.WorkflowRunID)

		return nil
	}

	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	err = q.client.LPush(ctx, q.queueKey, payload).Err()
	if err != nil {
		// Roll the dedupe marker back so a later publish can retry.
		delErr := q.client.Del(ctx, dedupeKey).Err()
		if delErr != nil {
			q.logger.ErrorContext(ctx, "failed to roll back dedupe key", "error", delErr)
		}

		return fmt.Errorf("failed to push delivery: %w", err)
	}

	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, callback Callback) error {
	q.wg.Add(1)

	go q.consume(ctx, callback)

	return nil
}

func (q *RedisQueue) consume(ctx context.Context, callback Callback) {
	defer q.wg.Done()

	q.logger.InfoContext(ctx, "starting queue consumer", "concurrency", q.concurrency)

	semaphore := make(chan struct{}, q.concurrency)

	for {
		select {
		case <-q.stopCh:
			q.logger.InfoContext(ctx, "queue consumer stopped")

			return
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "context cancelled, stopping queue consumer")

			return
		default:
			err := q.processMessage(ctx, callback, semaphore)
			if err != nil {
				q.logger.ErrorContext(ctx, "error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (q *RedisQueue) processMessage(ctx context.Context, callback Callback, semaphore chan struct{}) error {
	result, err := q.client.BLPop(ctx, redisPopTimeout, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop delivery from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var delivery Delivery

	err = json.Unmarshal([]byte(result[1]), &delivery)
	if err != nil {
		return fmt.Errorf("failed to unmarshal delivery: %w", err)
	}

	// The delivery left the queue; the same run may be enqueued again.
	dedupeKey := q.queueKey + ":dedupe:" + delivery.WorkflowRunID

	err = q.client.Del(ctx, dedupeKey).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to clear dedupe key", "error", err)
	}

	semaphore <- struct{}{}

	q.wg.Add(1)

	go func() {
		defer q.wg.Done()
		defer func() { <-semaphore }()

		err := callback(ctx, delivery)
		if err != nil {
			q.logger.ErrorContext(ctx, "delivery handler failed",
				"workflow_run_id", delivery.WorkflowRunID, "error", err)
		}
	}()

	return nil
}

func (q *RedisQueue) Close(_ context.Context) error {
	close(q.stopCh)
	q.wg.Wait()

	err := q.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}
