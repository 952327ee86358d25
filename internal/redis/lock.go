package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("advisor lock not acquired")
)

const defaultRetryInterval = 20 * time.Millisecond

// Locker is used by the appointment service to serialize bookings per advisor
type Locker interface {
	WithAdvisorLock(ctx context.Context, advisorID string, fn func(ctx context.Context) error) error
}

// AdvisorLocker holds a per advisor Redis key while fn runs.
type AdvisorLocker struct {
	client        *redis.Client
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
}

// NewRedisAdvisorLocker creates a locker that uses a per advisor Redis key.
// A caller that finds the key taken polls until wait elapses.
func NewRedisAdvisorLocker(client *redis.Client, ttl, wait time.Duration) *AdvisorLocker {
	return &AdvisorLocker{
		client:        client,
		ttl:           ttl,
		wait:          wait,
		retryInterval: defaultRetryInterval,
	}
}

func lockKey(advisorID string) string {
	return fmt.Sprintf("lock:advisor:%s", advisorID)
}

func (l *AdvisorLocker) WithAdvisorLock(ctx context.Context, advisorID string, fn func(ctx context.Context) error) error {
	key := lockKey(advisorID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release must run even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *AdvisorLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire advisor lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(l.retryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire advisor lock: %w", ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *AdvisorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release advisor lock: %w", err)
	}
	return nil
}
