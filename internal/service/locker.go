package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

// Locker serialises mutations of one promoteur across goroutines (and instances when Redis-backed).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type lockStore interface {
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

func promoteurLockKey(promoteurID string) string {
	return "promoteur:lock:" + promoteurID
}

// NewLocker returns a Redis-backed locker when store is set, an in-process one otherwise.
func NewLocker(store lockStore, ttl time.Duration, logger *zap.Logger) Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		return NewLocalLocker()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{store: store, ttl: ttl, retryEvery: 50 * time.Millisecond, logger: logger}
}

// RedisLocker polls SET NX until acquired or the context ends.
type RedisLocker struct {
	store      lockStore
	ttl        time.Duration
	retryEvery time.Duration
	logger     *zap.Logger
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.store.TryAcquire(ctx, key, token, l.ttl)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire lock")
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := l.store.Release(releaseCtx, key, token); err != nil {
					l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, appErrors.Clone(appErrors.ErrLocked, "resource is being modified, retry later")
		case <-ticker.C:
		}
	}
}

// LocalLocker is a keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs an in-process keyed locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, slot)
		return nil, appErrors.Clone(appErrors.ErrLocked, "resource is being modified, retry later")
	}
}

func (l *LocalLocker) release(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
