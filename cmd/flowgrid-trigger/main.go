package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowgrid/flowgrid/pkg/cmd"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/queue"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowgrid-trigger",
		EnableShellCompletion: true,
		Usage:                 "Create a workflow run and enqueue it for execution",
		Flags: []cli.Flag{
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
			&cli.StringFlag{
				Name:     "workflow-id",
				Aliases:  []string{"w"},
				Usage:    "Workflow to run",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "payload",
				Usage:   "Trigger payload as JSON, stored in the run metadata",
				Value:   "",
				Aliases: []string{"p"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: triggerRun,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func triggerRun(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("flowgrid-trigger")

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

	workflowID := command.String("workflow-id")

	// Fail early on unknown workflows instead of enqueueing a doomed run.
	_, err = store.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	metadata := map[string]any{"source": "trigger"}

	if payloadJSON := command.String("payload"); payloadJSON != "" {
		var payload any

		err = json.Unmarshal([]byte(payloadJSON), &payload)
		if err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}

		metadata["payload"] = payload
	}

	run := &models.WorkflowRun{
		WorkflowID: workflowID,
		Metadata:   metadata,
	}

	err = store.WorkflowRunRepository().Create(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to create workflow run: %w", err)
	}

	q, err := cmd.NewQueue(ctx, command.String("queue-provider"), "flowgrid-trigger", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := q.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close queue", "error", err)
		}
	}()

	err = q.Publish(ctx, queue.Delivery{WorkflowRunID: run.ID})
	if err != nil {
		return fmt.Errorf("failed to enqueue workflow run: %w", err)
	}

	logger.InfoContext(ctx, "Workflow run enqueued",
		"workflow_id", workflowID, "workflow_run_id", run.ID)

	fmt.Println(run.ID)

	return nil
}
