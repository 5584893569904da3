package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development: one
// mutex, one optional row.
type MemoryStore struct {
	mu  sync.Mutex
	row *Record
	now func() time.Time
}

// NewMemoryStore builds an empty lock store. nowFn defaults to time.Now
// and exists so tests can control lease expiry deterministically.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{now: nowFn}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) TryAcquire(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.row != nil && m.row.LeaseUntil.After(now) && m.row.RunID == runID && m.row.InvocationID == invocationID {
		m.row.LeaseUntil = now.Add(ttl)
		m.row.UpdatedAt = now
		return true, nil
	}
	if m.row != nil && m.row.LeaseUntil.After(now) {
		return false, nil
	}
	m.row = &Record{LockName: LockName, RunID: runID, InvocationID: invocationID, LeaseUntil: now.Add(ttl), UpdatedAt: now}
	return true, nil
}

func (m *MemoryStore) Renew(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.row == nil || m.row.RunID != runID || m.row.InvocationID != invocationID {
		return false, nil
	}
	m.row.LeaseUntil = now.Add(ttl)
	m.row.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, runID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.row == nil || m.row.RunID != runID {
		return false, nil
	}
	m.row = nil
	return true, nil
}

func (m *MemoryStore) Peek(ctx context.Context, runID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.row == nil || m.row.RunID != runID {
		return nil, nil
	}
	cp := *m.row
	return &cp, nil
}
