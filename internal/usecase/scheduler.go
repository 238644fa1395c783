package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PulseWatch/internal/ports"
)

// Job binds a recurring task to the driver that triggers it.
type Job struct {
	Name   string
	Driver ports.Scheduler
	Run    func(ctx context.Context) error
}

// Scheduler wires cron-like drivers with the analysis and cleanup use cases.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// AnalysisJob runs the orchestrator with its default batch size.
func AnalysisJob(driver ports.Scheduler, orchestrator *Orchestrator) Job {
	return Job{
		Name:   "analysis",
		Driver: driver,
		Run: func(ctx context.Context) error {
			_, err := orchestrator.Run(ctx, RunRequest{})
			return err
		},
	}
}

// CleanupJob runs the duplicate sweep.
func CleanupJob(driver ports.Scheduler, cleaner *Cleaner) Job {
	return Job{
		Name:   "cleanup",
		Driver: driver,
		Run: func(ctx context.Context) error {
			_, err := cleaner.RemoveDuplicates(ctx)
			return err
		},
	}
}

// Start registers every job with its driver.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Driver == nil || job.Run == nil {
			continue
		}
		job := job
		logger := s.logger.With("job", job.Name)
		trigger := func(at time.Time) {
			if err := job.Run(ctx); err != nil {
				logger.Error("scheduled job failed", "triggered_at", at, "error", err)
				return
			}
			logger.Info("scheduled job finished", "triggered_at", at)
		}
		if err := job.Driver.Start(ctx, trigger); err != nil {
			return fmt.Errorf("start %s job: %w", job.Name, err)
		}
	}
	return nil
}

// Stop gracefully tears down the underlying drivers.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if job.Driver == nil {
			continue
		}
		if err := job.Driver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s job: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}
