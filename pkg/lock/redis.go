package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nova-retail/catalogsync/core"
)

const keyPrefix = "catalogsync:lock:"

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	logger core.Logger
}

// WithRedisLogger sets the logger used for connection diagnostics.
func WithRedisLogger(logger core.Logger) RedisStoreOption {
	return func(c *redisStoreConfig) { c.logger = logger }
}

// RedisStore is the production Store: the lock row lives as a single
// Redis hash key, and TryAcquire/Renew use WATCH/MULTI/EXEC so the
// check-current-owner-then-extend sequence is atomic across racing
// invocations hitting the same Redis instance.
type RedisStore struct {
	client *redis.Client
	logger core.Logger
	now    func() time.Time
}

// NewRedisStore parses redisURL and verifies connectivity before
// returning.
func NewRedisStore(redisURL string, opts ...RedisStoreOption) (*RedisStore, error) {
	cfg := redisStoreConfig{logger: core.NoOpLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: invalid redis url: %w", err)
	}
	client := redis.NewClient(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("lock: redis ping failed: %w", err)
	}

	return &RedisStore{client: client, logger: cfg.logger, now: time.Now}, nil
}

// Close closes the underlying Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }

var _ Store = (*RedisStore)(nil)

func (r *RedisStore) key() string { return keyPrefix + LockName }

func (r *RedisStore) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func (r *RedisStore) TryAcquire(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error) {
	acquired := false
	now := r.clock()

	txf := func(tx *redis.Tx) error {
		current, err := readRecord(ctx, tx, r.key())
		if err != nil {
			return err
		}
		owned := current != nil && current.RunID == runID && current.InvocationID == invocationID
		expired := current == nil || !current.LeaseUntil.After(now)
		if !owned && !expired {
			return nil // row held by another (run_id, invocation_id); do not acquire
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writeRecord(ctx, pipe, r.key(), runID, invocationID, now.Add(ttl), now, ttl+10*time.Second)
			return nil
		})
		if err != nil {
			return err
		}
		acquired = true
		return nil
	}

	if err := r.client.Watch(ctx, txf, r.key()); err != nil && err != redis.TxFailedErr {
		return false, fmt.Errorf("lock: try_acquire: %w", err)
	}
	return acquired, nil
}

func (r *RedisStore) Renew(ctx context.Context, runID, invocationID string, ttl time.Duration) (bool, error) {
	renewed := false
	now := r.clock()

	txf := func(tx *redis.Tx) error {
		current, err := readRecord(ctx, tx, r.key())
		if err != nil {
			return err
		}
		if current == nil || current.RunID != runID || current.InvocationID != invocationID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writeRecord(ctx, pipe, r.key(), runID, invocationID, now.Add(ttl), now, ttl+10*time.Second)
			return nil
		})
		if err != nil {
			return err
		}
		renewed = true
		return nil
	}

	if err := r.client.Watch(ctx, txf, r.key()); err != nil && err != redis.TxFailedErr {
		return false, fmt.Errorf("lock: renew: %w", err)
	}
	return renewed, nil
}

func (r *RedisStore) Release(ctx context.Context, runID string) (bool, error) {
	released := false

	txf := func(tx *redis.Tx) error {
		current, err := readRecord(ctx, tx, r.key())
		if err != nil {
			return err
		}
		if current == nil || current.RunID != runID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.key())
			return nil
		})
		if err != nil {
			return err
		}
		released = true
		return nil
	}

	if err := r.client.Watch(ctx, txf, r.key()); err != nil && err != redis.TxFailedErr {
		return false, fmt.Errorf("lock: release: %w", err)
	}
	return released, nil
}

func (r *RedisStore) Peek(ctx context.Context, runID string) (*Record, error) {
	rec, err := readRecord(ctx, r.client, r.key())
	if err != nil {
		return nil, fmt.Errorf("lock: peek: %w", err)
	}
	if rec == nil || rec.RunID != runID {
		return nil, nil
	}
	return rec, nil
}

// cmdable is the subset of *redis.Client and *redis.Tx used by readRecord,
// so the same code path serves plain reads and WATCH-guarded reads.
type cmdable interface {
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
}

func readRecord(ctx context.Context, c cmdable, key string) (*Record, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	leaseUnix, _ := strconv.ParseInt(fields["lease_until"], 10, 64)
	updatedUnix, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return &Record{
		LockName:     LockName,
		RunID:        fields["run_id"],
		InvocationID: fields["invocation_id"],
		LeaseUntil:   time.Unix(leaseUnix, 0),
		UpdatedAt:    time.Unix(updatedUnix, 0),
	}, nil
}

func writeRecord(ctx context.Context, pipe redis.Pipeliner, key, runID, invocationID string, leaseUntil, updatedAt time.Time, keyTTL time.Duration) {
	pipe.HSet(ctx, key, map[string]interface{}{
		"run_id":        runID,
		"invocation_id": invocationID,
		"lease_until":   leaseUntil.Unix(),
		"updated_at":    updatedAt.Unix(),
	})
	pipe.Expire(ctx, key, keyTTL)
}
