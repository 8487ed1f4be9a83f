package ports

import (
	"context"
	"fmt"
	"time"

	"mosaicod/internal/domain/models"
)

// ChunkStore keeps chunk payloads keyed by storage key
type ChunkStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	// Get returns ErrNotFound when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is idempotent
	Delete(ctx context.Context, key string) error
	// List enumerates keys with the given prefix in lexical order
	List(ctx context.Context, prefix string, consume func(key string) error) error
	Close() error
}

// Locker is an exclusive lease per key.
// A lease past its TTL counts as released.
type Locker interface {
	// Acquire returns ErrAlreadyLocked when another holder owns a live lease
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) error
	// Refresh extends the lease, ErrNotHolder or ErrNotLocked otherwise
	Refresh(ctx context.Context, key, holder string, ttl time.Duration) error
	// Release returns ErrNotHolder or ErrNotLocked when the caller does not own the lease
	Release(ctx context.Context, key, holder string) error
	// Holder returns the current holder or "" when unlocked
	Holder(ctx context.Context, key string) (string, error)
	Close() error
}

// ChunkStorageKey is the storage key of a chunk payload. Every write attempt
// of an index gets its own key, so a stale writer never overwrites the payload
// of a committed chunk.
func ChunkStorageKey(sequenceID, topicID models.ResourceID, index int64, attempt string) string {
	return TopicStoragePrefix(sequenceID, topicID) + fmt.Sprintf("%020d-%s.chunk", index, attempt)
}

// TopicStoragePrefix is the key prefix shared by all chunks of a topic
func TopicStoragePrefix(sequenceID, topicID models.ResourceID) string {
	return fmt.Sprintf("%s/%s/", sequenceID.String(), topicID.String())
}

// SequenceStoragePrefix is the key prefix shared by all chunks of a sequence
func SequenceStoragePrefix(sequenceID models.ResourceID) string {
	return sequenceID.String() + "/"
}

// SequenceLockKey is the lock key of a sequence
func SequenceLockKey(locator models.SequenceLocator) string {
	return "sequence:" + locator.Name()
}

// TopicLockKey is the lock key of a topic
func TopicLockKey(locator models.TopicLocator) string {
	return "topic:" + locator.Name()
}
