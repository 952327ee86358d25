package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAdvisorLockSerializesSameAdvisor(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisAdvisorLocker(client, 5*time.Second, 5*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithAdvisorLock(context.Background(), "adv-1", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestAdvisorLockWaitTimeout(t *testing.T) {
	_, client := setupTestRedis(t)
	holder := NewRedisAdvisorLocker(client, 5*time.Second, time.Second)
	impatient := NewRedisAdvisorLocker(client, 5*time.Second, 60*time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.WithAdvisorLock(context.Background(), "adv-1", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := impatient.WithAdvisorLock(context.Background(), "adv-1", func(ctx context.Context) error {
		t.Fatal("critical section must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// a different advisor is not blocked
	err = impatient.WithAdvisorLock(context.Background(), "adv-2", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestAdvisorLockReleasesAndPropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisAdvisorLocker(client, 5*time.Second, time.Second)
	boom := errors.New("boom")

	err := locker.WithAdvisorLock(context.Background(), "adv-1", func(ctx context.Context) error {
		assert.True(t, mr.Exists(lockKey("adv-1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(lockKey("adv-1")))
}

func TestAdvisorLockDoesNotReleaseForeignToken(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisAdvisorLocker(client, 5*time.Second, time.Second)

	err := locker.WithAdvisorLock(context.Background(), "adv-1", func(ctx context.Context) error {
		// simulate the TTL lapsing and another process taking the key
		return mr.Set(lockKey("adv-1"), "someone-else")
	})
	require.NoError(t, err)

	val, err := mr.Get(lockKey("adv-1"))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestAdvisorLockRespectsContext(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set(lockKey("adv-1"), "held"))
	locker := NewRedisAdvisorLocker(client, 5*time.Second, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := locker.WithAdvisorLock(ctx, "adv-1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
