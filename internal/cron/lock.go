package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/sppg-platform/budget-engine/pkg/instance"
)

const defaultLockTTL = 55 * time.Minute

// Lock gives one cron worker in the fleet the cycle at a time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// heldLock is a lease on the shared key.
type heldLock interface {
	Release(ctx context.Context) error
}

// lockBackend obtains leases. ok is false when another holder has the key.
type lockBackend interface {
	obtain(ctx context.Context, key string, ttl time.Duration) (held heldLock, ok bool, err error)
}

// RedisLock leases the cycle through redislock. The TTL bounds how long a
// crashed holder blocks the next cycle, and release only deletes the key
// while this lease still owns it.
type RedisLock struct {
	backend lockBackend
	key     string
	ttl     time.Duration

	mu   sync.Mutex
	held heldLock
}

// NewRedisLock builds a lock over the shared redislock client.
func NewRedisLock(locker *redislock.Client, key string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for lock")
	}
	return newLock(redislockBackend{client: locker}, key, ttl)
}

func newLock(backend lockBackend, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{backend: backend, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != nil {
		return false, nil
	}
	held, ok, err := l.backend.obtain(ctx, l.key, l.ttl)
	if err != nil {
		return false, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	if ok {
		l.held = held
	}
	return ok, nil
}

// Release gives the lease back. A lease that already expired is not an error.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		return nil
	}
	held := l.held
	l.held = nil
	if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

type redislockBackend struct {
	client *redislock.Client
}

func (b redislockBackend) obtain(ctx context.Context, key string, ttl time.Duration) (heldLock, bool, error) {
	lease, err := b.client.Obtain(ctx, key, ttl, &redislock.Options{Metadata: instance.GetID()})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lease, true, nil
}

// LocalLock serializes runs within one process. Used when no redis is
// configured for a single-instance deployment.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}
