// Package scheduler triggers pipeline runs on a cron schedule
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-features/models"
	"currency-features/observability"
	"currency-features/pipeline"

	"github.com/robfig/cron/v3"
)

// Runner executes pipeline runs
type Runner interface {
	RunWithTrigger(ctx context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (*pipeline.Result, error)
}

// Scheduler runs the pipeline over a fixed universe on a cron schedule. Each run
// covers the lookback window ending today.
type Scheduler struct {
	cron         *cron.Cron
	runner       Runner
	tickers      []string
	lookbackDays int
	ctx          context.Context
	now          func() time.Time
}

// NewScheduler creates a Scheduler. Cron specs include a seconds field and are
// evaluated in UTC. A tick that fires while the previous run is still going is skipped.
func NewScheduler(ctx context.Context, runner Runner, tickers []string, lookbackDays int) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:       runner,
		tickers:      tickers,
		lookbackDays: lookbackDays,
		ctx:          ctx,
		now:          time.Now,
	}
}

// Register adds the pipeline task at the cron expression spec
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.task); err != nil {
		return fmt.Errorf("register pipeline task %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	observability.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for a running task to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		observability.Warn("scheduler stop timed out with a run in progress")
	}
	observability.Info("scheduler stopped")
}

// Next returns the next scheduled time, or zero when nothing is registered
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// RunNow executes the scheduled task immediately
func (s *Scheduler) RunNow() (*pipeline.Result, error) {
	start := models.TruncateDay(s.now()).AddDate(0, 0, -s.lookbackDays)
	return s.runner.RunWithTrigger(s.ctx, models.RunTriggerScheduled, s.tickers, start, nil)
}

func (s *Scheduler) task() {
	observability.Info("running scheduled pipeline", "tickers", len(s.tickers))
	result, err := s.RunNow()
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		observability.Warn("scheduled run skipped, another run is in progress")
	case err != nil:
		observability.Error("scheduled pipeline run failed", "error", err)
	default:
		observability.Info("scheduled pipeline run finished",
			"run_id", result.Run.ID,
			"records", result.Run.RecordsTotal,
			"failed_tickers", len(result.Run.FailedTickers()))
	}
}
