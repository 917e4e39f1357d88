package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/queue"
	"github.com/flowgrid/flowgrid/pkg/redelivery"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/web"
	"github.com/flowgrid/flowgrid/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WorkerManager struct {
	id              string
	logger          *slog.Logger
	persistence     persistence.Persistence
	queue           queue.Queue
	executor        *workflow.Executor
	locks           *lock.Manager
	tracer          trace.Tracer
	diagnosticsPort int
	redelivery      bool
}

func NewWorkerManager(
	id string,
	store persistence.Persistence,
	q queue.Queue,
	logger *slog.Logger,
	diagnosticsPort int,
	redeliveryEnabled bool,
) *WorkerManager {
	locks := lock.NewManager(store.WorkflowRunRepository(), logger)

	return &WorkerManager{
		id:              id,
		logger:          logger.With("module", "worker_manager", "worker_id", id),
		persistence:     store,
		queue:           q,
		executor:        workflow.NewExecutor(store, locks, registry.NewRegistry(), id, logger),
		locks:           locks,
		tracer:          nil,
		diagnosticsPort: diagnosticsPort,
		redelivery:      redeliveryEnabled,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	tracer, err := otelhelper.NewTracer(ctx, "flowgrid-worker")
	if err != nil {
		return err
	}

	w.tracer = tracer

	err = w.queue.Consume(ctx, w.handleDelivery)
	if err != nil {
		return err
	}

	var sweeper *redelivery.Sweeper

	if w.redelivery {
		sweeper = redelivery.NewSweeper(w.persistence.WorkflowRunRepository(), w.queue, w.logger)

		err = sweeper.Start(ctx)
		if err != nil {
			return err
		}
	}

	var diagnostics *fiber.App

	if w.diagnosticsPort > 0 {
		diagnostics = fiber.New()
		web.NewAPIHandlers(w.persistence, w.locks).RegisterRoutes(diagnostics)

		go func() {
			err := diagnostics.Listen(":" + strconv.Itoa(w.diagnosticsPort))
			if err != nil {
				w.logger.ErrorContext(ctx, "Diagnostics listener failed", "error", err)
			}
		}()
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if sweeper != nil {
		sweeper.Stop()
	}

	if diagnostics != nil {
		err := diagnostics.Shutdown()
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to shut down diagnostics listener", "error", err)
		}
	}

	return nil
}

func (w *WorkerManager) handleDelivery(ctx context.Context, delivery queue.Delivery) error {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow_run.advance",
		attribute.String(otelhelper.WorkflowRunIDKey, delivery.WorkflowRunID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With("workflow_run_id", delivery.WorkflowRunID)
	logger.InfoContext(ctx, "Processing run delivery")

	err := w.executor.Advance(ctx, delivery.WorkflowRunID)
	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.WorkflowRunIDKey, delivery.WorkflowRunID))
		logger.ErrorContext(ctx, "Failed to advance workflow run", "error", err)

		return err
	}

	return nil
}
