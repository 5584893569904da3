// Package lock implements the global-lock + invocation-nonce protocol: a
// single named lease row whose owner is the pair (run_id, invocation_id),
// never run_id alone, so that two overlapping invocations of the same run
// can never both believe they hold it.
package lock

import (
	"context"
	"time"
)

// LockName is the one lease row this package ever touches.
const LockName = "global_sync"

// Record mirrors the persisted lock row.
type Record struct {
	LockName     string
	RunID        string
	InvocationID string
	LeaseUntil   time.Time
	UpdatedAt    time.Time
}

// Store is the lock backend contract:
//
//	try_acquire_sync_lock(lock_name, run_id, invocation_id, ttl_seconds) -> bool
//	release_sync_lock(lock_name, run_id) -> bool
//
// plus a renew-by-CAS update, which this package expresses as
// AcquireOrRenew: try the CAS-style renew first (cheap, succeeds while we
// already own the row), and only fall back to TryAcquire when no row
// matched our pair.
type Store interface {
	// TryAcquire succeeds if the row is absent, its lease has expired, or
	// it is already held by the same (runID, invocationID) pair, and
	// grants (or extends) the lease for that pair.
	TryAcquire(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error)

	// Renew extends lease_until for a row already owned by the exact
	// pair (runID, invocationID). It reports false (not an error) if no
	// such row exists — that is the "renew failed, we lost ownership"
	// case the caller must treat as an aborted tick, not an error.
	Renew(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error)

	// Release drops the row unconditionally for runID, regardless of
	// invocationID. Used only on the orchestrator's finally path.
	Release(ctx context.Context, runID string) (bool, error)

	// Peek returns the current row for runID, if any, for diagnostics
	// and for the scheduler's "who holds this" checks.
	Peek(ctx context.Context, runID string) (*Record, error)
}

// AcquireOrRenew renews first since we are usually the repeat caller,
// falling back to acquire for a fresh or expired row.
func AcquireOrRenew(ctx context.Context, s Store, runID, invocationID string, ttl time.Duration) (bool, error) {
	ok, err := s.Renew(ctx, runID, invocationID, ttl)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return s.TryAcquire(ctx, runID, invocationID, ttl)
}

// AssertOwned implements the assert_owned(run_id, invocation_id) guard
// required before every state write. It is just a Renew: on this
// protocol, "still owned" and "lease extended" are the same operation.
func AssertOwned(ctx context.Context, s Store, runID, invocationID string, ttl time.Duration) (bool, error) {
	return s.Renew(ctx, runID, invocationID, ttl)
}
