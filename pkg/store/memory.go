package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nova-retail/catalogsync/core"
)

// MemoryRunStore is an in-process RunStore used by tests and local
// development, mirroring the shape of a simple mutex-guarded map store:
// one lock, one map, no background eviction.
type MemoryRunStore struct {
	mu     sync.Mutex
	runs   map[string]*RunRecord
	events map[string][]Event
	logger core.Logger
}

// NewMemoryRunStore builds an empty store. A nil logger is replaced with
// core.NoOpLogger{}.
func NewMemoryRunStore(logger core.Logger) *MemoryRunStore {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &MemoryRunStore{
		runs:   map[string]*RunRecord{},
		events: map[string][]Event{},
		logger: logger,
	}
}

var _ RunStore = (*MemoryRunStore)(nil)

func (m *MemoryRunStore) CreateRun(ctx context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.RunID]; exists {
		return core.NewError("store.CreateRun", "store", run.RunID, "", core.ErrInvalidConfiguration)
	}
	m.runs[run.RunID] = cloneRunRecord(run)
	m.logger.Debug("run created", map[string]interface{}{"run_id": run.RunID})
	return nil
}

func (m *MemoryRunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, core.NewError("store.GetRun", "store", runID, "", core.ErrRunNotFound)
	}
	return cloneRunRecord(run), nil
}

func (m *MemoryRunStore) FindRunningRun(ctx context.Context) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *RunRecord
	for _, r := range m.runs {
		if r.Status != RunRunning {
			continue
		}
		if best == nil || r.StartedAt.After(best.StartedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, core.NewError("store.FindRunningRun", "store", "", "", core.ErrRunNotFound)
	}
	return cloneRunRecord(best), nil
}

func (m *MemoryRunStore) SetStepInProgress(ctx context.Context, runID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return core.NewError("store.SetStepInProgress", "store", runID, step, core.ErrRunNotFound)
	}
	run.CurrentStep = step
	if run.Steps[step] == nil {
		run.Steps[step] = &StepState{Status: StepInProgress, Fields: map[string]interface{}{}}
	} else {
		run.Steps[step].Status = StepInProgress
	}
	return nil
}

func (m *MemoryRunStore) MergeStep(ctx context.Context, runID, step string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return core.NewError("store.MergeStep", "store", runID, step, core.ErrRunNotFound)
	}
	ss := run.Steps[step]
	if ss == nil {
		ss = &StepState{Fields: map[string]interface{}{}}
		run.Steps[step] = ss
	}
	applyStepPatch(ss, patch)
	return nil
}

func (m *MemoryRunStore) MergeRun(ctx context.Context, runID string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return core.NewError("store.MergeRun", "store", runID, "", core.ErrRunNotFound)
	}
	applyRunPatch(run, patch)
	return nil
}

func (m *MemoryRunStore) AppendEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[ev.RunID]; !ok {
		return core.NewError("store.AppendEvent", "store", ev.RunID, "", core.ErrRunNotFound)
	}
	m.events[ev.RunID] = append(m.events[ev.RunID], ev)
	return nil
}

func (m *MemoryRunStore) ListEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evs := m.events[runID]
	out := make([]Event, len(evs))
	copy(out, evs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
