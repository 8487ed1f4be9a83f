package chunkstore

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	var c Config
	c.Type = StoreTypeMemory
	c.Codec = CodecSnappy
	assert.NoError(t, c.Validate())

	c.Codec = "brotli"
	assert.Error(t, c.Validate())

	c.Codec = CodecNone
	c.Type = StoreTypeS3
	assert.Error(t, c.Validate())
	c.S3.Bucket = "chunks"
	assert.NoError(t, c.Validate())

	c.Type = "tape"
	assert.Error(t, c.Validate())
}

func TestNew(t *testing.T) {
	var c Config
	c.Type = StoreTypeFile
	c.File.Dir = t.TempDir()
	s, err := New(context.Background(), c, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "a/b", []byte("x")))
	require.NoError(t, s.Close())

	c.Type = StoreTypeBadger
	c.Badger.InMemory = true
	s, err = New(context.Background(), c, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
