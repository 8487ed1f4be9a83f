// Package storetest holds behaviour checks shared by every ports.ChunkStore backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/ports"
)

// Run executes the shared chunk store checks
func Run(t *testing.T, store ports.ChunkStore) {
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "s1/t1/00000000000000000000.chunk", []byte("first")))
		got, err := store.Get(ctx, "s1/t1/00000000000000000000.chunk")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)

		require.NoError(t, store.Put(ctx, "s1/t1/00000000000000000000.chunk", []byte("again")))
		got, err = store.Get(ctx, "s1/t1/00000000000000000000.chunk")
		require.NoError(t, err)
		assert.Equal(t, []byte("again"), got)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := store.Get(ctx, "s1/t1/missing.chunk")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		for _, k := range []string{
			"s2/t1/00000000000000000001.chunk",
			"s2/t1/00000000000000000000.chunk",
			"s2/t2/00000000000000000000.chunk",
			"s3/t1/00000000000000000000.chunk",
		} {
			require.NoError(t, store.Put(ctx, k, []byte(k)))
		}

		var keys []string
		require.NoError(t, store.List(ctx, "s2/t1/", func(k string) error {
			keys = append(keys, k)
			return nil
		}))
		assert.Equal(t, []string{
			"s2/t1/00000000000000000000.chunk",
			"s2/t1/00000000000000000001.chunk",
		}, keys)

		keys = nil
		require.NoError(t, store.List(ctx, "s2/", func(k string) error {
			keys = append(keys, k)
			return nil
		}))
		assert.Len(t, keys, 3)

		keys = nil
		require.NoError(t, store.List(ctx, "nothing/", func(k string) error {
			keys = append(keys, k)
			return nil
		}))
		assert.Empty(t, keys)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "s4/t1/x.chunk", []byte("x")))
		require.NoError(t, store.Delete(ctx, "s4/t1/x.chunk"))
		require.NoError(t, store.Delete(ctx, "s4/t1/x.chunk"))
		_, err := store.Get(ctx, "s4/t1/x.chunk")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}
