// Package orchestrator implements the tick-driven pipeline state machine:
// one invocation walks the canonical 13-step pipeline from current_step
// under the global lock protocol, running steps in order until one reports
// in_progress (such as an unfinished parse_merge), a retry delay is
// pending, or the invocation budget is exhausted, and then yields rather
// than blocking. It does not stop after a single completed step.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/lock"
	"github.com/nova-retail/catalogsync/pkg/store"
	"github.com/nova-retail/catalogsync/resilience"
)

// Outcome is what a StepHandler reports after one dispatch.
type Outcome int

const (
	// OutcomeCompleted means the step is fully done; the orchestrator
	// clears retry state and advances to the next canonical step.
	OutcomeCompleted Outcome = iota
	// OutcomeInProgress means the step made partial progress; Patch is
	// merged and the orchestrator yields so the next tick resumes it.
	OutcomeInProgress
	// OutcomeWorkerLimit means the step hit a transient 546/WORKER_LIMIT
	// fault; the orchestrator schedules a retry via resilience.WorkerLimitPolicy.
	OutcomeWorkerLimit
	// OutcomeFailed means the step failed for an application-level
	// reason; the orchestrator records it and proceeds to notification.
	OutcomeFailed
)

// StepResult is what a StepHandler returns for one dispatch.
type StepResult struct {
	Outcome Outcome
	Patch   map[string]interface{} // merged into steps[step] on InProgress or Completed
	Err     error                  // set on OutcomeFailed; reason text goes in ErrorCode
	ErrorCode string
}

// StepHandler executes one tick of a single canonical step.
type StepHandler interface {
	Execute(ctx context.Context, run *store.RunRecord) (StepResult, error)
}

// StepHandlerFunc adapts a function to StepHandler.
type StepHandlerFunc func(ctx context.Context, run *store.RunRecord) (StepResult, error)

func (f StepHandlerFunc) Execute(ctx context.Context, run *store.RunRecord) (StepResult, error) {
	return f(ctx, run)
}

// Orchestrator drives the tick loop.
type Orchestrator struct {
	Runs     store.RunStore
	Lock     lock.Store
	Logger   core.Logger
	Handlers map[string]StepHandler
	Retry    *resilience.WorkerLimitPolicy

	LockTTL           time.Duration
	OrchestratorBudget time.Duration
	ParseMergeBudget  time.Duration

	now func() time.Time
}

// New builds an Orchestrator with the given collaborators and sensible
// defaults for anything left zero.
func New(runs store.RunStore, lockStore lock.Store, handlers map[string]StepHandler, logger core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{
		Runs:               runs,
		Lock:               lockStore,
		Logger:             logger,
		Handlers:           handlers,
		Retry:              resilience.DefaultWorkerLimitPolicy(),
		LockTTL:            core.LockTTL,
		OrchestratorBudget: core.OrchestratorBudgetMS * time.Millisecond,
		ParseMergeBudget:   core.ParseMergeBudgetMS * time.Millisecond,
		now:                time.Now,
	}
}

// TickRequest is the single HTTP entry point's parsed input.
type TickRequest struct {
	ResumeRunID string
	Trigger     store.TriggerType
	Diagnostics bool
}

// TickResult is what the caller (cmd/orchestrator's HTTP handler) reports.
type TickResult struct {
	RunID  string
	Status store.RunStatus
	Yield  string // reason, e.g. "budget_exceeded", "retry_delay", "locked"; empty if the tick drove to a terminal status
}

var ErrAnotherRunInProgress = errors.New("orchestrator: another run is already in progress")

// Tick executes exactly one invocation: admit or resume a run, acquire
// the lock, walk the canonical steps from current_step, and yield or
// finalize.
func (o *Orchestrator) Tick(ctx context.Context, req TickRequest) (TickResult, error) {
	if req.Diagnostics {
		return o.diagnostics(ctx, req.ResumeRunID)
	}

	run, err := o.admitOrResume(ctx, req)
	if err != nil {
		return TickResult{}, err
	}

	invocationID := uuid.NewString()
	acquired, err := lock.AcquireOrRenew(ctx, o.Lock, run.RunID, invocationID, o.LockTTL)
	if err != nil {
		return TickResult{}, fmt.Errorf("orchestrator: acquire lock: %w", err)
	}
	if !acquired {
		o.event(ctx, run.RunID, store.LevelInfo, "yielded_locked", nil)
		return TickResult{RunID: run.RunID, Status: run.Status, Yield: "locked"}, nil
	}
	defer func() {
		if run.Status != store.RunRunning {
			_, _ = o.Lock.Release(ctx, run.RunID)
		}
	}()

	if run.CancelRequested {
		return o.handleCancellation(ctx, run, invocationID)
	}

	deadline := o.now().Add(o.OrchestratorBudget)
	result, err := o.walkSteps(ctx, run, invocationID, deadline)
	if err != nil {
		return TickResult{}, err
	}
	return result, nil
}

func (o *Orchestrator) walkSteps(ctx context.Context, run *store.RunRecord, invocationID string, deadline time.Time) (TickResult, error) {
	startIdx := 0
	for i, s := range core.CanonicalSteps {
		if s == run.CurrentStep {
			startIdx = i
			break
		}
	}

	for i := startIdx; i < len(core.CanonicalSteps); i++ {
		step := core.CanonicalSteps[i]

		// notification is sent exactly once, by finalize, so that it fires
		// on every exit path (success, failure, cancellation) without ever
		// running twice.
		if step == "notification" {
			break
		}

		if o.now().After(deadline) {
			o.event(ctx, run.RunID, store.LevelWarn, "orchestrator_yield_scheduled", map[string]interface{}{"step": step})
			return TickResult{RunID: run.RunID, Status: run.Status, Yield: "budget_exceeded"}, nil
		}

		state := run.Steps[step]
		if state != nil {
			if state.Status.TerminalSuccess() {
				continue
			}
			if state.Status == store.StepRetryDelay && state.Retry != nil && state.Retry.NextRetryAt.After(o.now()) {
				return TickResult{RunID: run.RunID, Status: run.Status, Yield: "retry_delay"}, nil
			}
		}

		if ok, err := lock.AssertOwned(ctx, o.Lock, run.RunID, invocationID, o.LockTTL); err != nil || !ok {
			o.event(ctx, run.RunID, store.LevelInfo, "lock_ownership_lost", nil)
			return TickResult{RunID: run.RunID, Status: run.Status, Yield: "lock_lost"}, nil
		}
		if err := o.Runs.SetStepInProgress(ctx, run.RunID, step); err != nil {
			return TickResult{}, fmt.Errorf("orchestrator: set_step_in_progress(%s): %w", step, err)
		}
		run.CurrentStep = step
		if run.Steps[step] == nil {
			run.Steps[step] = &store.StepState{}
		}
		run.Steps[step].Status = store.StepInProgress

		handler, ok := o.Handlers[step]
		if !ok {
			return TickResult{}, fmt.Errorf("orchestrator: no handler registered for step %q", step)
		}

		result, err := handler.Execute(ctx, run)
		if err != nil {
			return TickResult{}, fmt.Errorf("orchestrator: execute %s: %w", step, err)
		}

		switch result.Outcome {
		case OutcomeWorkerLimit:
			exhausted, err := o.scheduleRetry(ctx, run, step)
			if err != nil {
				return TickResult{}, err
			}
			if exhausted {
				run.Steps[step].Status = store.StepFailed
				o.event(ctx, run.RunID, store.LevelWarn, "step_retries_exhausted", map[string]interface{}{"step": step})
				return o.finalize(ctx, run, invocationID, "worker_limit_exhausted")
			}
			o.event(ctx, run.RunID, store.LevelWarn, "step_retry_scheduled", map[string]interface{}{"step": step})
			return TickResult{RunID: run.RunID, Status: run.Status, Yield: "retry_scheduled"}, nil

		case OutcomeFailed:
			if err := o.Runs.MergeStep(ctx, run.RunID, step, map[string]interface{}{"status": string(store.StepFailed)}); err != nil {
				return TickResult{}, err
			}
			run.Steps[step].Status = store.StepFailed
			msg := result.ErrorCode
			if msg == "" && result.Err != nil {
				msg = result.Err.Error()
			}
			return o.finalize(ctx, run, invocationID, msg)

		case OutcomeInProgress:
			if err := o.Runs.MergeStep(ctx, run.RunID, step, result.Patch); err != nil {
				return TickResult{}, err
			}
			return TickResult{RunID: run.RunID, Status: run.Status, Yield: "step_in_progress"}, nil

		case OutcomeCompleted:
			patch := map[string]interface{}{"status": string(store.StepCompleted), "retry": nil}
			for k, v := range result.Patch {
				patch[k] = v
			}
			if err := o.Runs.MergeStep(ctx, run.RunID, step, patch); err != nil {
				return TickResult{}, err
			}
			run.Steps[step].Status = store.StepCompleted
			run.Steps[step].Retry = nil
			o.event(ctx, run.RunID, store.LevelInfo, "step_completed", map[string]interface{}{"step": step})
		}
	}

	return o.finalize(ctx, run, invocationID, "")
}

// scheduleRetry records the next attempt for a WORKER_LIMIT fault. It
// reports exhausted=true once retry_attempt has passed STEP_MAX_RETRIES,
// in which case the step is merged straight to failed and the caller must
// finalize the run rather than yield another retry_delay.
func (o *Orchestrator) scheduleRetry(ctx context.Context, run *store.RunRecord, step string) (exhausted bool, err error) {
	attempt := 1
	if state := run.Steps[step]; state != nil && state.Retry != nil {
		attempt = state.Retry.RetryAttempt + 1
	}
	decision := o.Retry.Next(attempt, o.now())
	if decision.Exhausted {
		err := o.Runs.MergeStep(ctx, run.RunID, step, map[string]interface{}{
			"status":     string(store.StepFailed),
			"last_error": "worker_limit_exhausted",
		})
		return true, err
	}
	err = o.Runs.MergeStep(ctx, run.RunID, step, map[string]interface{}{
		"status": string(store.StepRetryDelay),
		"retry": map[string]interface{}{
			"retry_attempt":    attempt,
			"next_retry_at":    decision.NextRetryAt,
			"last_http_status": 546,
			"last_error":       "worker_limit_546",
			"status":           string(store.StepRetryDelay),
		},
	})
	return false, err
}

func (o *Orchestrator) handleCancellation(ctx context.Context, run *store.RunRecord, invocationID string) (TickResult, error) {
	if run.CurrentStep != "" {
		_ = o.Runs.MergeStep(ctx, run.RunID, run.CurrentStep, map[string]interface{}{"status": string(store.StepFailed)})
	}
	return o.finalize(ctx, run, invocationID, "cancelled")
}

// finalize is the sole sender of the notification step: it attempts it
// exactly once per run (skipping the send if a prior finalize call already
// completed it), even on failure or cancellation, then decides the run
// status from whether every canonical step completed and whether any
// non-whitelisted warnings fired.
func (o *Orchestrator) finalize(ctx context.Context, run *store.RunRecord, invocationID string, failureReason string) (TickResult, error) {
	notifyFailed := false
	if handler, hasNotify := o.Handlers["notification"]; hasNotify {
		if state := run.Steps["notification"]; state == nil || !state.Status.TerminalSuccess() {
			if err := o.Runs.SetStepInProgress(ctx, run.RunID, "notification"); err != nil {
				return TickResult{}, fmt.Errorf("orchestrator: set_step_in_progress(notification): %w", err)
			}
			result, err := handler.Execute(ctx, run)
			if err != nil || result.Outcome != OutcomeCompleted {
				notifyFailed = true
				_ = o.Runs.MergeStep(ctx, run.RunID, "notification", map[string]interface{}{"status": string(store.StepFailed)})
			} else {
				patch := map[string]interface{}{"status": string(store.StepCompleted)}
				for k, v := range result.Patch {
					patch[k] = v
				}
				_ = o.Runs.MergeStep(ctx, run.RunID, "notification", patch)
			}
		}
	}

	if failureReason == "cancelled" {
		if err := o.Runs.MergeRun(ctx, run.RunID, map[string]interface{}{"cancelled_by_user": true}); err != nil {
			return TickResult{}, fmt.Errorf("orchestrator: mark cancelled_by_user: %w", err)
		}
	}

	fresh, err := o.Runs.GetRun(ctx, run.RunID)
	if err != nil {
		return TickResult{}, fmt.Errorf("orchestrator: re-read run for completeness gate: %w", err)
	}

	allComplete := true
	for _, step := range core.CanonicalSteps {
		s := fresh.Steps[step]
		if s == nil || !s.Status.TerminalSuccess() {
			allComplete = false
			break
		}
	}

	events, err := o.Runs.ListEvents(ctx, run.RunID, 0)
	if err != nil {
		return TickResult{}, fmt.Errorf("orchestrator: list events for warning count: %w", err)
	}
	warningCount := 0
	for _, ev := range events {
		if ev.Level == store.LevelWarn && !core.OperationalWarningWhitelist[ev.Message] {
			warningCount++
		}
	}

	var finalStatus store.RunStatus
	var errMsg string
	switch {
	case failureReason != "" || notifyFailed || !allComplete:
		finalStatus = store.RunFailed
		errMsg = failureReason
		if errMsg == "" && !allComplete {
			errMsg = "pipeline_incomplete"
		}
		if notifyFailed {
			errMsg = "notification_failed"
		}
	case warningCount > 0:
		finalStatus = store.RunSuccessWithWarning
	default:
		finalStatus = store.RunSuccess
	}

	now := o.now()
	patch := map[string]interface{}{
		"status":        string(finalStatus),
		"finished_at":   now,
		"warning_count": warningCount,
	}
	if errMsg != "" {
		patch["error_message"] = errMsg
	}
	if err := o.Runs.MergeRun(ctx, run.RunID, patch); err != nil {
		return TickResult{}, fmt.Errorf("orchestrator: finalize merge_run: %w", err)
	}

	_, _ = o.Lock.Release(ctx, run.RunID)

	return TickResult{RunID: run.RunID, Status: finalStatus}, nil
}

func (o *Orchestrator) admitOrResume(ctx context.Context, req TickRequest) (*store.RunRecord, error) {
	if req.ResumeRunID != "" {
		run, err := o.Runs.GetRun(ctx, req.ResumeRunID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resume: %w", err)
		}
		if run.Status != store.RunRunning {
			return nil, fmt.Errorf("orchestrator: resume %s: %w", req.ResumeRunID, core.ErrRunNotRunning)
		}
		return run, nil
	}

	existing, err := o.Runs.FindRunningRun(ctx)
	if err != nil && !errors.Is(err, core.ErrRunNotFound) {
		return nil, fmt.Errorf("orchestrator: find running run: %w", err)
	}
	if existing != nil {
		return nil, ErrAnotherRunInProgress
	}

	runID := uuid.NewString()
	run := store.NewRunRecord(runID, req.Trigger, o.now(), core.CanonicalSteps[0])
	if err := o.Runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: create run: %w", err)
	}
	return run, nil
}

func (o *Orchestrator) diagnostics(ctx context.Context, runID string) (TickResult, error) {
	run, err := o.Runs.GetRun(ctx, runID)
	if err != nil {
		return TickResult{}, fmt.Errorf("orchestrator: diagnostics: %w", err)
	}
	return TickResult{RunID: run.RunID, Status: run.Status}, nil
}

func (o *Orchestrator) event(ctx context.Context, runID string, level store.EventLevel, message string, details map[string]interface{}) {
	_ = o.Runs.AppendEvent(ctx, store.Event{
		RunID:     runID,
		Level:     level,
		Message:   message,
		Details:   details,
		Timestamp: o.now(),
	})
}
