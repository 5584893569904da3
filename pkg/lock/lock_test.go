package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-retail/catalogsync/core"
)

func TestMemoryStore_AcquireRenewRelease(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(func() time.Time { return now })

	ok, err := s.TryAcquire(ctx, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "run-1", "inv-2", 120*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "a different invocation of the same run must not steal an unexpired lease")

	ok, err = s.Renew(ctx, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Renew(ctx, "run-1", "inv-2", 120*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Release(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := s.Peek(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_AcquireAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	s := NewMemoryStore(func() time.Time { return clock })

	ok, err := s.TryAcquire(ctx, "run-1", "inv-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(2 * time.Second)

	ok, err = s.TryAcquire(ctx, "run-1", "inv-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "a fresh invocation must be able to claim an expired lease")
}

func TestAcquireOrRenew(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(func() time.Time { return now })

	ok, err := AcquireOrRenew(ctx, s, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "first call has no row to renew, falls back to acquire")

	ok, err = AcquireOrRenew(ctx, s, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "second call renews the row it already owns")
}

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &RedisStore{client: client, logger: core.NoOpLogger{}, now: time.Now}, mr
}

func TestRedisStore_AcquireRenewRelease(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	defer mr.Close()

	ok, err := s.TryAcquire(ctx, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "run-1", "inv-2", 120*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Renew(ctx, "run-1", "inv-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := s.Peek(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "inv-1", rec.InvocationID)

	ok, err = s.Release(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err = s.Peek(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_AcquireAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	defer mr.Close()

	clock := time.Now()
	s.now = func() time.Time { return clock }

	ok, err := s.TryAcquire(ctx, "run-1", "inv-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(2 * time.Second)
	mr.FastForward(2 * time.Second)

	ok, err = s.TryAcquire(ctx, "run-1", "inv-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "a lease whose stored lease_until has passed our clock must be reclaimable")
}
