// Package lock provides at-the-door mutual exclusion for orchestration
// operations. The engines assume at most one import/sync/reset runs against
// a given registry at a time; when multiple processes can trigger them, the
// caller serializes through a Locker before invoking an engine.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrAlreadyLocked indicates another operation currently holds the lock.
var ErrAlreadyLocked = errors.New("another operation is already in progress")

// ReleaseFunc releases a held lock.
type ReleaseFunc func(ctx context.Context) error

// Locker grants named exclusive leases with a TTL.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error)
}

// NoopLocker performs no locking. Used for single-process deployments where
// the engines' sequential design is exclusion enough.
type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, _ string, _ time.Duration) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisLocker implements Locker with a Redis SET NX lease. The lease value
// is a random token so a lock is only released by its holder.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "flowsync:lock:",
	}
}

// releaseScript deletes the key only when the caller still holds the lease.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error) {
	key := l.prefix + name
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	if !acquired {
		return nil, ErrAlreadyLocked
	}

	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}

		return nil
	}

	return release, nil
}
