// Package redelivery re-enqueues pending runs whose delivery was lost.
package redelivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/queue"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule sweeps every minute.
	DefaultSchedule = "* * * * *"
	// DefaultMinAge keeps freshly created runs out of the sweep; their first
	// delivery is usually still in flight.
	DefaultMinAge = 5 * time.Minute
)

// Sweeper periodically republishes pending runs that are old enough to count
// as stuck and are not actively locked by a worker. Duplicate deliveries are
// harmless: the queue dedupes by run id and the run lock serializes execution.
type Sweeper struct {
	runs   persistence.WorkflowRunRepository
	queue  queue.Queue
	logger *slog.Logger

	schedule string
	minAge   time.Duration
	cron     *cron.Cron
}

func NewSweeper(runs persistence.WorkflowRunRepository, q queue.Queue, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		runs:     runs,
		queue:    q,
		logger:   logger.With("module", "redelivery"),
		schedule: DefaultSchedule,
		minAge:   DefaultMinAge,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		err := s.Sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "redelivery sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule redelivery sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "redelivery sweeper started", "schedule", s.schedule)

	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass: every pending run older than minAge without a fresh
// lock gets republished.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()

	runs, err := s.runs.ListStalePending(ctx, now.Add(-s.minAge), now.Add(-lock.StaleLockThreshold))
	if err != nil {
		return fmt.Errorf("failed to list stale pending runs: %w", err)
	}

	for _, run := range runs {
		err := s.queue.Publish(ctx, queue.Delivery{WorkflowRunID: run.ID})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to republish run",
				"workflow_run_id", run.ID, "error", err)

			continue
		}

		s.logger.InfoContext(ctx, "republished stale pending run",
			"workflow_run_id", run.ID, "created_at", run.CreatedAt)
	}

	return nil
}
