// Package scheduler implements the resume/tick scheduler: a periodic
// trigger that invokes the orchestrator for the currently running run (if
// any), and admits a fresh cron-triggered run on its configured cadence.
package scheduler

import (
	"context"
	"time"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/orchestrator"
	"github.com/nova-retail/catalogsync/pkg/store"
)

// Scheduler periodically ticks the orchestrator so a running pipeline
// keeps making progress between manual HTTP invocations.
type Scheduler struct {
	Orchestrator *orchestrator.Orchestrator
	Runs         store.RunStore
	Logger       core.Logger
	Interval     time.Duration
	CronSpec     CronTrigger
}

// CronTrigger decides whether now is a moment to admit a brand new
// cron-triggered run. A nil CronTrigger means the scheduler only ever
// resumes existing runs, never admits new ones.
type CronTrigger interface {
	ShouldTrigger(now time.Time) bool
}

// New builds a Scheduler with a default 30s resume interval.
func New(orch *orchestrator.Orchestrator, runs store.RunStore, logger core.Logger) *Scheduler {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Scheduler{Orchestrator: orch, Runs: runs, Logger: logger, Interval: 30 * time.Second}
}

// Run blocks, ticking every s.Interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tickOnce(ctx, now)
		}
	}
}

func (s *Scheduler) tickOnce(ctx context.Context, now time.Time) {
	running, err := s.Runs.FindRunningRun(ctx)
	if err == nil && running != nil {
		if _, err := s.Orchestrator.Tick(ctx, orchestrator.TickRequest{ResumeRunID: running.RunID}); err != nil {
			s.Logger.Error("scheduler_resume_failed", map[string]interface{}{"run_id": running.RunID, "error": err.Error()})
		}
		return
	}

	if s.CronSpec != nil && s.CronSpec.ShouldTrigger(now) {
		if _, err := s.Orchestrator.Tick(ctx, orchestrator.TickRequest{Trigger: store.TriggerCron}); err != nil {
			s.Logger.Error("scheduler_cron_trigger_failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// DailyAt is a CronTrigger that fires once per day at the given
// hour/minute (local time), guarding against firing twice within the
// same minute across scheduler ticks faster than a minute apart.
type DailyAt struct {
	Hour, Minute int

	lastFired time.Time
}

func (d *DailyAt) ShouldTrigger(now time.Time) bool {
	if now.Hour() != d.Hour || now.Minute() != d.Minute {
		return false
	}
	if d.lastFired.Year() == now.Year() && d.lastFired.YearDay() == now.YearDay() {
		return false
	}
	d.lastFired = now
	return true
}
