// Package resilience implements the pipeline's retry/backoff policy for
// transient worker-eviction faults. Unlike an in-process retry loop that
// sleeps between attempts, this policy is resumed by the tick scheduler:
// it only ever computes the next attempt number and an absolute
// next_retry_at, never blocks.
package resilience

import (
	"math/rand"
	"time"

	"github.com/nova-retail/catalogsync/core"
)

// WorkerLimitPolicy is the geometric backoff table for HTTP 546 /
// WORKER_LIMIT faults, with ±10% uniform jitter.
type WorkerLimitPolicy struct {
	BackoffSeconds []int
	MaxRetries     int
	// Rand is used for jitter; tests inject a seeded source for
	// deterministic assertions within the documented tolerance window.
	Rand *rand.Rand
}

// DefaultWorkerLimitPolicy returns the standard backoff table:
// 60, 120, 240, 480, 600, 600, 600, 600 seconds, STEP_MAX_RETRIES = 8.
func DefaultWorkerLimitPolicy() *WorkerLimitPolicy {
	return &WorkerLimitPolicy{
		BackoffSeconds: append([]int(nil), core.WorkerLimitBackoffSeconds...),
		MaxRetries:     core.StepMaxRetries,
		Rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decision is the outcome of evaluating one WORKER_LIMIT occurrence.
type Decision struct {
	// Exhausted is true once retryAttempt has passed MaxRetries; the step
	// must be finalized failed with core.ErrWorkerLimitExhausted.
	Exhausted bool
	// NextRetryAt is the absolute wall-clock time the scheduler may next
	// attempt the step. Zero when Exhausted.
	NextRetryAt time.Time
	// DelaySeconds is the jittered delay actually used (for logging).
	DelaySeconds float64
}

// Next computes the outcome for retryAttempt (1-indexed: the attempt that
// just failed with WORKER_LIMIT). now is injected so callers and tests
// control the clock explicitly rather than reading time.Now() deep inside
// policy logic.
func (p *WorkerLimitPolicy) Next(retryAttempt int, now time.Time) Decision {
	if retryAttempt > p.MaxRetries {
		return Decision{Exhausted: true}
	}

	idx := retryAttempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.BackoffSeconds) {
		idx = len(p.BackoffSeconds) - 1
	}
	base := float64(p.BackoffSeconds[idx])

	jitter := p.jitterFactor()
	delay := base * (1 + jitter)

	return Decision{
		NextRetryAt:  now.Add(time.Duration(delay * float64(time.Second))),
		DelaySeconds: delay,
	}
}

// jitterFactor returns a uniform value in [-0.10, 0.10] rather than a
// sinusoidal shape, so the jitter stays bounded and easy to reason about.
func (p *WorkerLimitPolicy) jitterFactor() float64 {
	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return (r.Float64()*2 - 1) * 0.10
}
