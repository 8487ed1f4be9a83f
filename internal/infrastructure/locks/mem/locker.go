// Package mem is a process-local lease table.
package mem

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

var _ ports.Locker = (*Locker)(nil)

type lease struct {
	holder  string
	expires time.Time
}

// Locker is an in-process ports.Locker
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewLocker creates an empty lease table
func NewLocker() *Locker {
	return &Locker{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// live returns the unexpired lease of key, dropping an expired one
func (l *Locker) live(key string) (lease, bool) {
	ls, ok := l.leases[key]
	if !ok {
		return lease{}, false
	}
	if !l.now().Before(ls.expires) {
		delete(l.leases, key)
		return lease{}, false
	}
	return ls, true
}

// Acquire takes the lease
func (l *Locker) Acquire(_ context.Context, key, holder string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ls, ok := l.live(key); ok {
		return errors.Wrapf(ports.ErrAlreadyLocked, "'%s' is held by %s", key, ls.holder)
	}
	l.leases[key] = lease{holder: holder, expires: l.now().Add(ttl)}
	return nil
}

// Refresh extends the lease
func (l *Locker) Refresh(_ context.Context, key, holder string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ls, ok := l.live(key)
	if !ok {
		return errors.Wrapf(ports.ErrNotLocked, "'%s'", key)
	}
	if ls.holder != holder {
		return errors.Wrapf(ports.ErrNotHolder, "'%s' is held by %s", key, ls.holder)
	}
	ls.expires = l.now().Add(ttl)
	l.leases[key] = ls
	return nil
}

// Release drops the lease
func (l *Locker) Release(_ context.Context, key, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ls, ok := l.live(key)
	if !ok {
		return errors.Wrapf(ports.ErrNotLocked, "'%s'", key)
	}
	if ls.holder != holder {
		return errors.Wrapf(ports.ErrNotHolder, "'%s' is held by %s", key, ls.holder)
	}
	delete(l.leases, key)
	return nil
}

// Holder returns the live holder of key
func (l *Locker) Holder(_ context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ls, _ := l.live(key)
	return ls.holder, nil
}

// Close drops every lease
func (l *Locker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leases = make(map[string]lease)
	return nil
}
