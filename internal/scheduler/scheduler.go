// Package scheduler runs workflows on recurring schedules. Jobs carry
// either a 5-field cron expression or an interval in seconds; a
// background loop checks for due jobs once per minute and launches
// engine runs without blocking the loop.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

const (
	defaultTick       = 60 * time.Second
	defaultRunTimeout = 300 * time.Second
)

// WorkflowSource resolves a job's workflow id to a definition.
type WorkflowSource interface {
	Load(ctx context.Context, workflowID string) (*workflow.Definition, error)
}

// DirSource loads definitions from <Root>/<id>.{yaml,yml,json}.
type DirSource struct {
	Root string
}

// Load reads and parses the definition file for a workflow id.
func (d DirSource) Load(_ context.Context, workflowID string) (*workflow.Definition, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(d.Root, workflowID+ext)
		if _, err := os.Stat(path); err == nil {
			return workflow.LoadFile(path)
		}
	}
	return nil, fmt.Errorf("workflow not found: %s", workflowID)
}

// RunFunc executes one scheduled workflow run. The context carries the
// run timeout.
type RunFunc func(ctx context.Context, job Job, def *workflow.Definition)

// Scheduler is the background job loop.
type Scheduler struct {
	store  *Store
	source WorkflowSource
	run    RunFunc

	tick       time.Duration
	runTimeout time.Duration
	now        func() time.Time

	wg sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTick overrides the check interval.
func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tick = d }
}

// WithRunTimeout bounds each launched run.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.runTimeout = d }
}

func withNow(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler builds a scheduler over a job store, a workflow source,
// and a run function.
func NewScheduler(store *Store, source WorkflowSource, run RunFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:      store,
		source:     source,
		run:        run,
		tick:       defaultTick,
		runTimeout: defaultRunTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the check loop until the context is canceled, then waits
// for in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info(ctx, "Scheduler started", "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.checkJobs(ctx); err != nil {
				logger.Error(ctx, "Scheduler check failed", "err", err)
			}
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopped")
			s.wg.Wait()
			return
		}
	}
}

// checkJobs launches every due job. Each launch records last_run first
// so a slow workflow cannot double-fire on the next tick.
func (s *Scheduler) checkJobs(ctx context.Context) error {
	jobs, err := s.store.ListEnabled(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	for _, job := range jobs {
		if !jobDue(job, now) {
			continue
		}
		logger.Info(ctx, "Running scheduled job", "jobId", job.ID, "workflowId", job.WorkflowID)
		if err := s.store.MarkRun(ctx, job.ID, now); err != nil {
			logger.Error(ctx, "Failed to mark job run", "jobId", job.ID, "err", err)
			continue
		}
		s.launch(ctx, job)
	}
	return nil
}

func (s *Scheduler) launch(ctx context.Context, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()

		def, err := s.source.Load(runCtx, job.WorkflowID)
		if err != nil {
			logger.Error(runCtx, "Scheduled workflow not found", "workflowId", job.WorkflowID, "err", err)
			return
		}
		s.run(runCtx, job, def)
		logger.Info(runCtx, "Scheduled workflow completed", "workflowId", job.WorkflowID)
	}()
}

// jobDue reports whether a job should fire at the given instant.
// Interval jobs fire when the interval has elapsed since the last run;
// cron jobs fire when the current minute matches, at most once per
// minute.
func jobDue(job Job, now time.Time) bool {
	if job.IntervalSeconds > 0 {
		if job.LastRun == nil {
			return true
		}
		next := job.LastRun.Add(time.Duration(job.IntervalSeconds) * time.Second)
		return !now.Before(next)
	}
	if job.CronExpr == "" {
		return false
	}
	if !cronDue(job.CronExpr, now) {
		return false
	}
	if job.LastRun != nil && now.Sub(*job.LastRun) < time.Minute {
		return false
	}
	return true
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// cronDue reports whether the 5-field expression matches now's minute.
func cronDue(expr string, now time.Time) bool {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return false
	}
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
