package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/chunkstore"
	memstore "mosaicod/internal/infrastructure/chunkstore/mem"
	memlocks "mosaicod/internal/infrastructure/locks/mem"
	memrepo "mosaicod/internal/infrastructure/repositories/mem"
)

type testEnv struct {
	repo      ports.Registry
	store     *memstore.Store
	locker    *memlocks.Locker
	locks     *LockManager
	payloads  *PayloadStore
	resources *ResourceService
	query     *QueryResolver
	ingest    *IngestService
	notify    *NotifyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRegistry(t, memrepo.NewRegistry())
}

func newTestEnvWithRegistry(t *testing.T, repo ports.Registry) *testEnv {
	t.Helper()
	codec, err := chunkstore.NewCodec(chunkstore.CodecSnappy)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	env := &testEnv{
		repo:   repo,
		store:  memstore.NewStore(),
		locker: memlocks.NewLocker(),
	}
	env.locks = NewLockManager(env.locker, 300*time.Millisecond, logr.Discard())
	env.payloads = NewPayloadStore(env.store, codec)
	env.resources = NewResourceService(repo, env.locks, env.payloads, logr.Discard())
	env.query = NewQueryResolver(repo)
	env.ingest = NewIngestService(repo, env.locks, env.payloads, nil, logr.Discard())
	env.notify, err = NewNotifyService(repo, logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.notify.Close() })
	return env
}

// seed creates a sequence with the given topic paths and returns the sequence key
func (e *testEnv) seed(t *testing.T, sequence string, topics ...string) string {
	t.Helper()
	ctx := context.Background()
	seqID, err := e.resources.CreateSequence(ctx, sequence, nil)
	require.NoError(t, err)
	for _, path := range topics {
		_, err := e.resources.CreateTopic(ctx, seqID.String(), sequence+"/"+path, "cdr", "mock", nil)
		require.NoError(t, err)
	}
	return seqID.String()
}
