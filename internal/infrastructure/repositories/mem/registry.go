package mem

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/patterns"
)

// Registry is an in-memory implementation of the Registry interface
type Registry struct {
	db     *MemDB
	mu     sync.RWMutex
	subj   patterns.Subject
	closed bool
}

// NewRegistry creates a new in-memory registry
func NewRegistry() *Registry {
	return &Registry{
		db:   NewMemDB(),
		subj: patterns.NewSubject(),
	}
}

// Subject returns the registry's subject
func (r *Registry) Subject() patterns.Subject {
	return r.subj
}

// Writer returns a new writer
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.New("registry is closed")
	}
	return &writer{
		registry: r,
		ctx:      ctx,
	}, nil
}

// Reader returns a new reader over the state committed at call time
func (r *Registry) Reader(ctx context.Context) (ports.Reader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.New("registry is closed")
	}
	return &reader{
		state: r.db.snapshot(),
		ctx:   ctx,
	}, nil
}

// Close closes the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
