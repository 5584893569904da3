package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/lock"
	"github.com/nova-retail/catalogsync/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completingHandlers() map[string]StepHandler {
	handlers := map[string]StepHandler{}
	for _, step := range core.CanonicalSteps {
		handlers[step] = StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
			return StepResult{Outcome: OutcomeCompleted}, nil
		})
	}
	return handlers
}

func newTestOrchestrator(handlers map[string]StepHandler) (*Orchestrator, store.RunStore) {
	runs := store.NewMemoryRunStore(nil)
	lockStore := lock.NewMemoryStore(time.Now)
	o := New(runs, lockStore, handlers, nil)
	return o, runs
}

func TestTick_DrivesAllStepsToSuccess(t *testing.T) {
	o, runs := newTestOrchestrator(completingHandlers())
	ctx := context.Background()

	var result TickResult
	var err error
	for i := 0; i < len(core.CanonicalSteps)+1; i++ {
		result, err = o.Tick(ctx, TickRequest{Trigger: store.TriggerManual})
		require.NoError(t, err)
		if result.Status == store.RunSuccess || result.Status == store.RunFailed {
			break
		}
	}

	assert.Equal(t, store.RunSuccess, result.Status)

	run, err := runs.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	for _, step := range core.CanonicalSteps {
		require.NotNil(t, run.Steps[step])
		assert.True(t, run.Steps[step].Status.TerminalSuccess(), "step %s", step)
	}
}

func TestTick_FailedStepFinalizesRunAsFailed(t *testing.T) {
	handlers := completingHandlers()
	handlers["pricing"] = StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		return StepResult{Outcome: OutcomeFailed, ErrorCode: "pricing_blew_up"}, nil
	})
	o, _ := newTestOrchestrator(handlers)
	ctx := context.Background()

	var result TickResult
	var err error
	for i := 0; i < len(core.CanonicalSteps)+1; i++ {
		result, err = o.Tick(ctx, TickRequest{Trigger: store.TriggerManual})
		require.NoError(t, err)
		if result.Status == store.RunSuccess || result.Status == store.RunFailed {
			break
		}
	}

	assert.Equal(t, store.RunFailed, result.Status)
}

func TestTick_SecondConcurrentStartIsRejected(t *testing.T) {
	o, _ := newTestOrchestrator(completingHandlers())
	ctx := context.Background()

	lockStore := o.Lock
	// Pin the first run's current_step so its first tick doesn't finish
	// in one shot, leaving it "running" when the second Tick is attempted.
	o.Handlers["import_ftp"] = StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		return StepResult{Outcome: OutcomeInProgress, Patch: map[string]interface{}{"note": "still going"}}, nil
	})

	first, err := o.Tick(ctx, TickRequest{Trigger: store.TriggerManual})
	require.NoError(t, err)
	assert.Equal(t, "step_in_progress", first.Yield)

	// Release the lock the first tick holds so AcquireOrRenew doesn't mask
	// the real assertion under test: that a second run cannot be admitted
	// while one is already running.
	_, _ = lockStore.Release(ctx, first.RunID)

	_, err = o.Tick(ctx, TickRequest{Trigger: store.TriggerManual})
	assert.ErrorIs(t, err, ErrAnotherRunInProgress)
}
