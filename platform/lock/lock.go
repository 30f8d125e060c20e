// Package lock provides a Redis-backed mutual exclusion primitive keyed by
// agent and time slot. It guards the mutation phase of a booking so two
// conversations cannot claim the same slot concurrently.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the slot lock.
var ErrNotAcquired = errors.New("slot lock not acquired")

// SlotLocker serializes booking mutations per agent and slot start time.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, agentID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker backed by a per agent+slot Redis key.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) SlotLocker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, agentID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:agent:%s:slot:%d", agentID.String(), slotStart.UTC().Unix())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	// The lock expires after ttl, so the guarded work must too.
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

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
