package services

import (
	"context"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/chunkstore"
)

// PayloadStore frames chunk payloads with the codec and keeps them in a chunk store
type PayloadStore struct {
	store ports.ChunkStore
	codec *chunkstore.Codec
}

// NewPayloadStore creates a payload store
func NewPayloadStore(store ports.ChunkStore, codec *chunkstore.Codec) *PayloadStore {
	return &PayloadStore{store: store, codec: codec}
}

// StoredPayload describes a written payload
type StoredPayload struct {
	Key string
	// SizeBytes is the length of the payload as the client sent it
	SizeBytes int64
	// StoredBytes is the encoded length kept in the chunk store
	StoredBytes int64
	Digest      string
}

// Write encodes and stores a payload under key
func (p *PayloadStore) Write(ctx context.Context, key string, payload []byte) (StoredPayload, error) {
	stored, err := p.codec.Encode(payload)
	if err != nil {
		return StoredPayload{}, errors.WithMessage(err, "failed to encode chunk payload")
	}
	if err := p.store.Put(ctx, key, stored); err != nil {
		return StoredPayload{}, errors.WithMessagef(err, "failed to store chunk '%s'", key)
	}
	return StoredPayload{
		Key:         key,
		SizeBytes:   int64(len(payload)),
		StoredBytes: int64(len(stored)),
		Digest:      chunkstore.Digest(stored),
	}, nil
}

// Read loads, verifies and decodes the payload of a committed chunk
func (p *PayloadStore) Read(ctx context.Context, chunk models.Chunk) ([]byte, error) {
	stored, err := p.store.Get(ctx, chunk.StorageKey)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load chunk '%s'", chunk.StorageKey)
	}
	if chunk.Digest != "" {
		if err := chunkstore.Verify(stored, chunk.Digest); err != nil {
			return nil, errors.WithMessagef(err, "chunk '%s'", chunk.StorageKey)
		}
	}
	return p.codec.Decode(stored)
}

// Delete removes a single payload
func (p *PayloadStore) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, key)
}

// DeletePrefix removes every payload under prefix
func (p *PayloadStore) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	if err := p.store.List(ctx, prefix, func(key string) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return errors.WithMessagef(err, "failed to list payloads under '%s'", prefix)
	}
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			return errors.WithMessagef(err, "failed to delete payload '%s'", key)
		}
	}
	return nil
}
