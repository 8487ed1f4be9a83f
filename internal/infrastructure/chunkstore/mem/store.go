// Package mem keeps chunk payloads in process memory.
package mem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

var _ ports.ChunkStore = (*Store)(nil)

// Store is an in-memory ports.ChunkStore
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores a copy of the payload
func (s *Store) Put(_ context.Context, key string, payload []byte) error {
	data := make([]byte, len(payload))
	copy(data, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

// Get returns a copy of the payload
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "chunk '%s'", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the payload
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// List enumerates keys with the prefix in lexical order
func (s *Store) List(ctx context.Context, prefix string, consume func(string) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := consume(k); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
