package main

import (
	"context"
	"os"

	"github.com/flowgrid/flowgrid/pkg/cmd"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowgrid-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that consumes run deliveries and executes workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-provider",
				Usage:   "Queue provider (redis, kafka, gochannel)",
				Value:   "redis",
				Sources: cli.EnvVars("QUEUE_PROVIDER"),
			},
			&cli.IntFlag{
				Name:    "diagnostics-port",
				Usage:   "Port for the read-only diagnostics API (0 disables it)",
				Value:   0,
				Sources: cli.EnvVars("DIAGNOSTICS_PORT"),
			},
			&cli.BoolFlag{
				Name:    "redelivery",
				Usage:   "Periodically re-enqueue stale pending runs",
				Value:   false,
				Sources: cli.EnvVars("REDELIVERY_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowgrid-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing FlowGrid Worker")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			q, err := cmd.NewQueue(ctx, command.String("queue-provider"), "flowgrid-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := q.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close queue", "error", err)
				}
			}()

			worker := NewWorkerManager(
				workerID,
				store,
				q,
				logger,
				command.Int("diagnostics-port"),
				command.Bool("redelivery"),
			)

			return worker.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
