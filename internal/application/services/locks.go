package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"mosaicod/internal/application/utils"
	"mosaicod/internal/domain/ports"
)

// ErrLeaseLost is the cancellation cause of a lease whose keep-alive failed
var ErrLeaseLost = errors.New("lease lost")

// LockManager hands out exclusive leases on resources.
// Every lease is refreshed in the background until released.
type LockManager struct {
	locker ports.Locker
	ttl    time.Duration
	retry  utils.RetryConfig
	logger logr.Logger
}

// NewLockManager creates a lock manager over a lease backend
func NewLockManager(locker ports.Locker, ttl time.Duration, logger logr.Logger) *LockManager {
	retry := utils.DefaultRetryConfig()
	retry.MaxElapsed = ttl / 3
	return &LockManager{
		locker: locker,
		ttl:    ttl,
		retry:  retry,
		logger: logger.WithName("locks"),
	}
}

// TTL returns the lease duration
func (m *LockManager) TTL() time.Duration {
	return m.ttl
}

// Acquire takes an exclusive lease on key. It fails with ports.ErrAlreadyLocked
// when another holder owns a live lease.
func (m *LockManager) Acquire(ctx context.Context, key string) (*Lease, error) {
	holder := uuid.NewString()
	if err := m.locker.Acquire(ctx, key, holder, m.ttl); err != nil {
		return nil, err
	}

	leaseCtx, cancel := context.WithCancelCause(context.Background())
	l := &Lease{
		m:      m,
		key:    key,
		holder: holder,
		ctx:    leaseCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.keepAlive()

	m.logger.V(1).Info("lease acquired", "key", key, "holder", holder)
	return l, nil
}

// IsLocked reports whether a live lease exists on key
func (m *LockManager) IsLocked(ctx context.Context, key string) (bool, error) {
	holder, err := m.locker.Holder(ctx, key)
	if err != nil {
		return false, errors.WithMessagef(err, "failed to read lock state of '%s'", key)
	}
	return holder != "", nil
}

// Lease is an acquired exclusive lock
type Lease struct {
	m      *LockManager
	key    string
	holder string

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	once       sync.Once
	releaseErr error
}

// Key returns the locked key
func (l *Lease) Key() string {
	return l.key
}

// Holder returns the holder identity of the lease
func (l *Lease) Holder() string {
	return l.holder
}

// Context is cancelled when the lease is released or lost
func (l *Lease) Context() context.Context {
	return l.ctx
}

// Err returns ErrLeaseLost when the keep-alive could not extend the lease
func (l *Lease) Err() error {
	if cause := context.Cause(l.ctx); errors.Is(cause, ErrLeaseLost) {
		return cause
	}
	return nil
}

// Release stops the keep-alive and frees the lock. Safe to call more than once.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		lost := l.Err()
		l.cancel(context.Canceled)
		<-l.done

		if lost != nil {
			l.releaseErr = lost
			return
		}
		// release must run even when the caller's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.m.ttl)
		defer cancel()
		if err := l.m.locker.Release(releaseCtx, l.key, l.holder); err != nil {
			l.releaseErr = errors.WithMessagef(err, "failed to release '%s'", l.key)
			l.m.logger.Error(err, "lease release failed", "key", l.key, "holder", l.holder)
			return
		}
		l.m.logger.V(1).Info("lease released", "key", l.key, "holder", l.holder)
	})
	return l.releaseErr
}

func (l *Lease) keepAlive() {
	defer close(l.done)

	interval := l.m.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			err := utils.ExecuteWithRetry(l.ctx, l.m.retry, func() error {
				return l.m.locker.Refresh(l.ctx, l.key, l.holder, l.m.ttl)
			})
			if err == nil || l.ctx.Err() != nil {
				continue
			}
			l.m.logger.Error(err, "lease keep-alive failed", "key", l.key, "holder", l.holder)
			l.cancel(errors.Wrapf(ErrLeaseLost, "'%s': %v", l.key, err))
			return
		}
	}
}
