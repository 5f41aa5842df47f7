package cmd

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/prodfactory/flowsync/pkg/lock"
)

// NewLocker builds the operation locker. With no Redis URL the noop locker
// is used: a single process serializes operations by construction.
func NewLocker(redisURL string) (lock.Locker, error) {
	if redisURL == "" {
		return lock.NoopLocker{}, nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return lock.NewRedisLocker(redis.NewClient(options)), nil
}
