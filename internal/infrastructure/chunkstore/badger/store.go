// Package badger keeps chunk payloads in an embedded badger key-value store.
package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

var _ ports.ChunkStore = (*Store)(nil)

// Config configures the embedded database
type Config struct {
	Dir string `yaml:"dir" env:"BADGER_DIR" env-default:"data/chunks"`
	// InMemory keeps everything in RAM, Dir is ignored
	InMemory bool `yaml:"in-memory" env:"BADGER_IN_MEMORY"`
}

// Store is a badger ports.ChunkStore
type Store struct {
	db *badger.DB
}

// NewStore opens the database
func NewStore(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger")
	}
	return &Store{db: db}, nil
}

// Put stores the payload
func (s *Store) Put(_ context.Context, key string, payload []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	return errors.Wrapf(err, "badger put '%s'", key)
}

// Get reads the payload
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ports.ErrNotFound, "chunk '%s'", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "badger get '%s'", key)
	}
	return data, nil
}

// Delete removes the payload
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "badger delete '%s'", key)
}

// List iterates keys with the prefix, badger keeps keys sorted
func (s *Store) List(ctx context.Context, prefix string, consume func(string) error) error {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "badger list")
	}
	// consume runs outside the read transaction
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

// Close flushes and closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
