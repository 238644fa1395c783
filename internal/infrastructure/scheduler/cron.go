package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PulseWatch/internal/ports"
	"PulseWatch/pkg/logger"
)

// CronScheduler triggers a single job on a cron expression.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for a standard five-field cron expression
// or a descriptor such as "@hourly".
func NewCronScheduler(spec string, location *time.Location, log *slog.Logger) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{spec: spec, location: location, logger: log}
}

// Start registers job and begins ticking. A trigger that fires while the
// previous one is still running is skipped.
func (c *CronScheduler) Start(_ context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLog := cron.PrintfLogger(logger.New(c.logger, "cron", slog.LevelInfo))
	engine := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := engine.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("add cron job %q: %w", c.spec, err)
	}
	engine.Start()
	c.cron = engine
	c.logger.Info("cron job scheduled", "spec", c.spec, "timezone", c.location.String())
	return nil
}

// Stop halts the schedule and waits for a running job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	engine := c.cron
	c.cron = nil
	c.mu.Unlock()
	if engine == nil {
		return nil
	}

	done := engine.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}
