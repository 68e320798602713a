package lock

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Mutex is a blocking lock on a single key. Waiters in this process queue on
// a channel; the Redis lease, when present, is taken after the local one.
type Mutex struct {
	key    string
	ttl    time.Duration
	local  chan struct{}
	remote *RedisLocker
	log    *zap.Logger
}

func NewMutex(key string, ttl time.Duration, remote *RedisLocker, log *zap.Logger) *Mutex {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mutex{
		key:    key,
		ttl:    ttl,
		local:  make(chan struct{}, 1),
		remote: remote,
		log:    log,
	}
}

// Lock blocks until the mutex is held or ctx ends.
func (m *Mutex) Lock(ctx context.Context) (Release, error) {
	select {
	case m.local <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var token string
	if m.remote != nil {
		t, err := m.remote.Lock(ctx, m.key, m.ttl, 0)
		if err != nil {
			<-m.local
			return nil, err
		}
		token = t
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if m.remote != nil {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.remote.Release(releaseCtx, m.key, token); err != nil {
				m.log.Warn("failed to release remote lock", zap.String("key", m.key), zap.Error(err))
			}
			cancel()
		}
		<-m.local
	}, nil
}
