package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/repositories/registrytest"
)

func TestRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.Registry {
		return NewRegistry()
	})
}

func TestReader_SnapshotIsStable(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	seq := registrytest.MustSequence(t, reg, "seq")
	topic := registrytest.MustTopic(t, reg, seq, "t")
	registrytest.MustChunk(t, reg, topic, 0, 0, 1, 10)

	r, err := reg.Reader(ctx)
	require.NoError(t, err)

	registrytest.MustChunk(t, reg, topic, 1, 2, 3, 10)

	var n int
	require.NoError(t, r.ListChunks(ctx, topic.ID, func(models.Chunk) error {
		n++
		return nil
	}))
	assert.Equal(t, 1, n)
}

func TestWriter_ConcurrentCommitsReplayOnLatestState(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	loc, _ := models.NewSequenceLocator("race")

	w1, err := reg.Writer(ctx)
	require.NoError(t, err)
	w2, err := reg.Writer(ctx)
	require.NoError(t, err)

	require.NoError(t, w1.CreateSequence(ctx, models.NewSequence(loc, nil)))
	require.NoError(t, w2.CreateSequence(ctx, models.NewSequence(loc, nil)))

	require.NoError(t, w1.Commit())
	assert.ErrorIs(t, w2.Commit(), ports.ErrConflict)
}

func TestWriter_UseAfterCommit(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	assert.Error(t, w.CreateLayer(ctx, models.Layer{Name: "x"}))
	assert.Error(t, w.Commit())
}

func TestRegistry_Closed(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Close())
	_, err := reg.Reader(context.Background())
	assert.Error(t, err)
	_, err = reg.Writer(context.Background())
	assert.Error(t, err)
}
