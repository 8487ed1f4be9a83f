package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/infrastructure/chunkstore/storetest"
)

func TestStore_InMemory(t *testing.T) {
	s, err := NewStore(Config{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	storetest.Run(t, s)
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "a/b/c.chunk", []byte("persisted")))
	require.NoError(t, s.Close())

	s, err = NewStore(Config{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "a/b/c.chunk")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}
