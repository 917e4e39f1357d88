package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/flowgrid/flowgrid/pkg/queue"
)

// NewQueue builds the delivery transport for the given provider: "redis"
// (default), "kafka" or "gochannel".
func NewQueue(ctx context.Context, provider, serviceName string, logger *slog.Logger) (queue.Queue, error) {
	switch provider {
	case "", "redis":
		db := 0

		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			parsed, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
			}

			db = parsed
		}

		return queue.NewRedisQueue(ctx, queue.RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		}, logger)
	case "kafka":
		return queue.NewKafkaQueue(logger, serviceName)
	case "gochannel":
		return queue.NewGoChannelQueue(logger), nil
	default:
		return nil, fmt.Errorf("unsupported queue provider: %s", provider)
	}
}
