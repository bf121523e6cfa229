package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("booking lock not acquired")

// Locker guards the check-then-act window of a reservation. Locks are keyed
// by the appointment start timestamp, so two requests racing for the same
// start time serialize while requests for different starts proceed freely.
type Locker interface {
	WithStartLock(ctx context.Context, startAt time.Time, fn func(ctx context.Context) error) error
}

type redisStartLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStartLocker creates a locker that uses a per-start-time Redis key.
func NewRedisStartLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisStartLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisStartLocker) WithStartLock(ctx context.Context, startAt time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:start:%s", startAt.UTC().Format(time.RFC3339))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisStartLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
