package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/infrastructure/chunkstore/storetest"
)

func TestStore(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	storetest.Run(t, s)
}

func TestStore_RejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, ErrPathTraversal)
	_, err = s.Get(context.Background(), "../outside")
	assert.ErrorIs(t, err, ErrPathTraversal)
}
