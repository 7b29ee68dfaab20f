package usecase

import (
	"context"
	"log/slog"
	"time"

	"ColaMonitor/internal/ports"
)

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
	// AfterRun is called once per run, e.g. to flush metrics.
	AfterRun func(Result, error)
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler. A failed run is
// logged and the schedule keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		result, err := s.pipeline.Run(ctx)
		if s.logger != nil {
			if err != nil {
				s.logger.Error("scheduled run failed", "trigger", trigger, "run_id", result.RunID, "error", err)
			} else {
				s.logger.Info("scheduled run finished", "trigger", trigger, "run_id", result.RunID, "notified", result.Notified)
			}
		}
		if s.AfterRun != nil {
			s.AfterRun(result, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
