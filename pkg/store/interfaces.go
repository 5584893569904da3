package store

import "context"

// RunStore is the persistence boundary for run records and their event
// log. SetStepInProgress and MergeStep are the only two RPCs the
// orchestrator and step runner are allowed to call once a run exists —
// every other write goes through MergeRun for top-level fields. No
// caller is ever handed a *RunRecord it can mutate in place and expect
// the change to stick; every mutation is expressed as a patch.
type RunStore interface {
	// CreateRun admits a brand new run. Returns core.ErrInvalidConfiguration
	// wrapped if a run with the same RunID already exists.
	CreateRun(ctx context.Context, run *RunRecord) error

	// GetRun returns a deep copy of the current run document, or
	// core.ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// FindRunningRun returns the run currently in RunRunning status, if
	// any. Ties (more than one row claims to be running, which should
	// never happen but is defended against) resolve to the most
	// recently started run; the other running rows are not reported.
	FindRunningRun(ctx context.Context) (*RunRecord, error)

	// SetStepInProgress atomically sets current_step=step and merges
	// {"status": "in_progress"} into steps[step], creating the step
	// entry if absent. It is one of the two sanctioned write RPCs.
	SetStepInProgress(ctx context.Context, runID, step string) error

	// MergeStep deep-merges patch into steps[step] (JSON-patch-style
	// semantics: nil values delete). It is the other sanctioned write
	// RPC and is how every step reports progress, retry state, and
	// terminal status.
	MergeStep(ctx context.Context, runID, step string, patch map[string]interface{}) error

	// MergeRun deep-merges patch into the run's top-level fields
	// (status, finished_at, runtime_ms, warning_count, cancel_requested,
	// metrics, location_warnings, file_manifest, error_message).
	MergeRun(ctx context.Context, runID string, patch map[string]interface{}) error

	// AppendEvent appends one structured event to the run's event log.
	AppendEvent(ctx context.Context, ev Event) error

	// ListEvents returns up to limit most-recent events for a run,
	// oldest first. limit <= 0 means no limit.
	ListEvents(ctx context.Context, runID string, limit int) ([]Event, error)
}
