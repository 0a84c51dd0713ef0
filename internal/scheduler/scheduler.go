package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// jobTimeout caps a single job run so a wedged upstream can't pin the
// scheduler's worker forever.
const jobTimeout = 10 * time.Minute

// Scheduler manages periodic tasks
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
	log  *slog.Logger
}

// New creates a new scheduler
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]cron.EntryID),
		log:  log.With("component", "scheduler"),
	}
}

// AddJob adds a job with a cron schedule ("0 7 * * *", "@every 90s", ...)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("job failed", "job", name, "error", err)
		} else {
			s.log.Debug("job completed", "job", name, "took", time.Since(start).Round(time.Millisecond))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.Info("job added", "job", name, "schedule", schedule)
	return nil
}

// AddIntervalJob adds a job that runs on a fixed interval
func (s *Scheduler) AddIntervalJob(name string, every time.Duration, job Job) error {
	return s.AddJob(name, fmt.Sprintf("@every %s", every), job)
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("scheduler starting")
	s.cron.Start()
}

// Stop halts the scheduler and returns a context that completes once
// running jobs have finished
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}
