package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestKeyedLockExcludesSameKey(t *testing.T) {
	k := NewKeyedLock(nil, zaptest.NewLogger(t))
	ctx := context.Background()

	release, ok, err := k.TryAcquire(ctx, "engine-run:content_writer", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, k.Held("engine-run:content_writer"))

	_, ok, err = k.TryAcquire(ctx, "engine-run:content_writer", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := k.TryAcquire(ctx, "engine-run:micro_tasks", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	release()
	assert.False(t, k.Held("engine-run:content_writer"))

	again, ok, err := k.TryAcquire(ctx, "engine-run:content_writer", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestKeyedLockConcurrentTryAcquire(t *testing.T) {
	k := NewKeyedLock(nil, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
		hold    = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			release, ok, err := k.TryAcquire(ctx, "same", time.Minute)
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
				<-hold
				release()
			}
		}()
	}
	close(start)
	time.Sleep(50 * time.Millisecond)
	close(hold)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestMutexSerializesHolders(t *testing.T) {
	m := NewMutex("withdrawal:balance", time.Minute, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestMutexLockHonoursContext(t *testing.T) {
	m := NewMutex("withdrawal:balance", time.Minute, nil, nil)

	release, err := m.Lock(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockerNilClient(t *testing.T) {
	assert.Nil(t, NewRedisLocker(nil, "x:"))

	var l *RedisLocker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, errLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
	assert.ErrorIs(t, l.Extend(context.Background(), "k", "t", time.Second), errLockNotConfigured)
}

func TestRenewIntervalIsAThirdOfTTL(t *testing.T) {
	assert.Equal(t, 40*time.Second, renewInterval(2*time.Minute))
	assert.Equal(t, time.Millisecond, renewInterval(time.Nanosecond))
}
