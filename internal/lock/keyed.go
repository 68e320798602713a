// Package lock provides the mutual exclusion used around engine runs and
// balance checks. Local state always applies; Redis extends it across
// processes when configured.
package lock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Release gives a lease back. It is safe to call more than once.
type Release func()

// KeyedLock is a non-blocking try-lock per key.
type KeyedLock struct {
	mu     sync.Mutex
	held   map[string]struct{}
	remote *RedisLocker
	log    *zap.Logger
}

func NewKeyedLock(remote *RedisLocker, log *zap.Logger) *KeyedLock {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyedLock{
		held:   make(map[string]struct{}),
		remote: remote,
		log:    log,
	}
}

// TryAcquire returns ok=false when key is already held, here or in another
// process. An error means the remote lock could not be consulted; the local
// lease is not kept in that case.
func (k *KeyedLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	k.mu.Lock()
	if _, busy := k.held[key]; busy {
		k.mu.Unlock()
		return nil, false, nil
	}
	k.held[key] = struct{}{}
	k.mu.Unlock()

	var token string
	if k.remote != nil {
		t, ok, err := k.remote.TryLock(ctx, key, ttl)
		if err != nil || !ok {
			k.drop(key)
			return nil, false, err
		}
		token = t
	}

	stop := make(chan struct{})
	if k.remote != nil {
		go k.renew(key, token, ttl, stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if k.remote != nil {
				// the caller's ctx may already be done
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := k.remote.Release(releaseCtx, key, token); err != nil {
					k.log.Warn("failed to release remote lock", zap.String("key", key), zap.Error(err))
				}
				cancel()
			}
			k.drop(key)
		})
	}, true, nil
}

// renew keeps a remote lease alive for as long as the holder runs. The TTL
// only matters when the process dies without releasing.
func (k *KeyedLock) renew(key, token string, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(renewInterval(ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := k.remote.Extend(ctx, key, token, ttl)
			cancel()
			if err != nil {
				k.log.Warn("failed to renew remote lock", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

func renewInterval(ttl time.Duration) time.Duration {
	if every := ttl / 3; every > 0 {
		return every
	}
	return time.Millisecond
}

// Held reports whether key is locked by this process.
func (k *KeyedLock) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}

func (k *KeyedLock) drop(key string) {
	k.mu.Lock()
	delete(k.held, key)
	k.mu.Unlock()
}
