package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorStringVariesWithContext(t *testing.T) {
	full := NewError("orchestrator.tick", "step", "run-1", "pricing", ErrWorkerLimit)
	assert.Equal(t, "orchestrator.tick [run=run-1 step=pricing]: 546 worker_limit", full.Error())

	runOnly := NewError("orchestrator.tick", "run", "run-1", "", ErrRunNotRunning)
	assert.Equal(t, "orchestrator.tick [run=run-1]: run is not in running state", runOnly.Error())

	bare := NewError("config.load", "config", "", "", ErrMissingEnv)
	assert.Equal(t, "config.load: missing_env", bare.Error())
}

func TestError_UnwrapReachesSentinel(t *testing.T) {
	wrapped := NewError("steprunner.parse_merge", "step", "run-1", "parse_merge", ErrTooManyChunks)
	assert.True(t, errors.Is(wrapped, ErrTooManyChunks))
}

func TestIsWorkerLimit(t *testing.T) {
	assert.True(t, IsWorkerLimit(NewError("op", "step", "r", "s", ErrWorkerLimit)))
	assert.False(t, IsWorkerLimit(ErrRunNotFound))
}

func TestIsLockLoss(t *testing.T) {
	assert.True(t, IsLockLoss(ErrLockHeldByOther))
	assert.True(t, IsLockLoss(ErrLockLost))
	assert.True(t, IsLockLoss(ErrLockExpired))
	assert.False(t, IsLockLoss(ErrRunNotFound))
}
