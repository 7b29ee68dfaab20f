package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ColaMonitor/internal/ports"
)

// CronScheduler runs a job on a standard five-field cron expression. A run
// that is still in progress when the next tick fires causes that tick to be
// skipped.
type CronScheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(expr string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{expr: expr, location: loc, logger: logger}
}

// Validate parses the expression without scheduling anything.
func (c *CronScheduler) Validate() error {
	if _, err := cron.ParseStandard(c.expr); err != nil {
		return fmt.Errorf("cron expression %q: %w", c.expr, err)
	}
	return nil
}

// Start registers job and begins ticking. The job receives the scheduled time
// in the configured location.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	logger := cron.DiscardLogger
	if c.logger != nil {
		logger = cron.PrintfLogger(slog.NewLogLogger(c.logger.Handler(), slog.LevelDebug))
	}

	runner := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)
	_, err := runner.AddFunc(c.expr, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	})
	if err != nil {
		return fmt.Errorf("cron expression %q: %w", c.expr, err)
	}

	runner.Start()
	c.cron = runner
	return nil
}

// Stop halts scheduling and waits for a running job to finish or ctx to end.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the expression fires next after t.
func (c *CronScheduler) Next(t time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(c.expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("cron expression %q: %w", c.expr, err)
	}
	return schedule.Next(t.In(c.location)), nil
}
