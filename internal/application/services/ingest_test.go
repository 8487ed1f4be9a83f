package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/chunkstore"
	memrepo "mosaicod/internal/infrastructure/repositories/mem"
)

func TestIngest_Accounting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "run", "imu")

	up, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)

	const n = 5
	var total int64
	payloads := make([][]byte, n)
	for i := 0; i < n; i++ {
		payloads[i] = []byte(fmt.Sprintf("payload number %d", i))
		chunk, err := up.Append(ctx, *rng(int64(i)*10, int64(i)*10+9), payloads[i])
		require.NoError(t, err)
		assert.Equal(t, int64(i), chunk.Index)
		assert.Equal(t, int64(len(payloads[i])), chunk.SizeBytes)
		total += int64(len(payloads[i]))
	}
	assert.Equal(t, int64(n), up.Topic().ChunksNumber)
	require.NoError(t, up.Close(ctx, nil))

	info, err := env.resources.TopicSystemInfo(ctx, "run/imu")
	require.NoError(t, err)
	assert.Equal(t, int64(n), info.ChunksNumber)
	assert.Equal(t, total, info.TotalSizeBytes)
	assert.False(t, info.IsLocked)

	seqInfo, err := env.resources.SequenceSystemInfo(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, total+int64(len("{}")), seqInfo.TotalSizeBytes)

	reads, err := env.query.ResolveReads(ctx, []QuerySpec{{Sequence: "run", Topic: "imu"}})
	require.NoError(t, err)
	require.Len(t, reads[0].Chunks, n)
	for i, c := range reads[0].Chunks {
		assert.Equal(t, int64(i), c.Index, "commit order")
		data, err := env.payloads.Read(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, payloads[i], data)
	}

	notes, err := env.notify.List(ctx, "run/imu")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyUploadCompleted, notes[0].Type)
}

func TestIngest_ConcurrentUploads(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "run", "imu")

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*Upload
		locked  int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up, err := env.ingest.BeginByName(ctx, "run/imu")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, up)
			case errors.Is(err, ports.ErrLocked):
				locked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, writers-1, locked)

	info, err := env.resources.TopicSystemInfo(ctx, "run/imu")
	require.NoError(t, err)
	assert.True(t, info.IsLocked)

	_, err = winners[0].Append(ctx, *rng(0, 1), []byte("a"))
	require.NoError(t, err)
	require.NoError(t, winners[0].Close(ctx, nil))

	retry, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	chunk, err := retry.Append(ctx, *rng(2, 3), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), chunk.Index, "the retry continues after the committed boundary")
	require.NoError(t, retry.Close(ctx, nil))
}

func TestIngest_BeginErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "run", "imu")

	_, err := env.ingest.BeginByKey(ctx, "nope")
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
	_, err = env.ingest.BeginByKey(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
	_, err = env.ingest.BeginByKey(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff")
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
	_, err = env.ingest.BeginByKey(ctx, models.NewResourceID().String())
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = env.ingest.BeginByName(ctx, "run/gps")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	topic, err := env.resources.GetTopic(ctx, "run/imu")
	require.NoError(t, err)
	up, err := env.ingest.BeginByKey(ctx, topic.ID.String())
	require.NoError(t, err)
	require.NoError(t, up.Close(ctx, nil))
}

type failingRegistry struct {
	ports.Registry
}

func (r *failingRegistry) Writer(ctx context.Context) (ports.Writer, error) {
	w, err := r.Registry.Writer(ctx)
	if err != nil {
		return nil, err
	}
	return &failingWriter{Writer: w}, nil
}

type failingWriter struct {
	ports.Writer
}

func (w *failingWriter) AppendChunk(context.Context, models.Chunk) error {
	return errors.New("disk full")
}

type lostCommitRegistry struct {
	ports.Registry
}

func (r *lostCommitRegistry) Writer(ctx context.Context) (ports.Writer, error) {
	w, err := r.Registry.Writer(ctx)
	if err != nil {
		return nil, err
	}
	return &lostCommitWriter{Writer: w}, nil
}

type lostCommitWriter struct {
	ports.Writer
}

func (w *lostCommitWriter) Commit() error {
	w.Writer.Abort()
	return errors.New("connection reset")
}

func storedKeys(t *testing.T, env *testEnv) []string {
	t.Helper()
	var keys []string
	require.NoError(t, env.store.List(context.Background(), "", func(key string) error {
		keys = append(keys, key)
		return nil
	}))
	return keys
}

func TestIngest_SizeIsPayloadLength(t *testing.T) {
	ctx := context.Background()
	codec, err := chunkstore.NewCodec(chunkstore.CodecNone)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	env := newTestEnv(t)
	env.payloads = NewPayloadStore(env.store, codec)
	env.ingest = NewIngestService(env.repo, env.locks, env.payloads, nil, logr.Discard())
	env.seed(t, "run", "imu")

	up, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := up.Append(ctx, *rng(int64(i), int64(i)), []byte("0123456789"))
		require.NoError(t, err)
	}
	require.NoError(t, up.Close(ctx, nil))

	info, err := env.resources.TopicSystemInfo(ctx, "run/imu")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.ChunksNumber)
	assert.Equal(t, int64(40), info.TotalSizeBytes, "the codec framing is not accounted")
}

func TestIngest_StaleWriterKeepsCommittedPayload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "run", "imu")

	stale, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	_, err = stale.Append(ctx, *rng(0, 0), []byte("stale-0"))
	require.NoError(t, err)

	// the lease expires under the stale writer before its keep-alive notices
	require.NoError(t, env.locker.Release(ctx, stale.lease.key, stale.lease.holder))

	fresh, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	committed, err := fresh.Append(ctx, *rng(1, 1), []byte("fresh-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), committed.Index)

	// both writers target index 1
	_, err = stale.Append(ctx, *rng(1, 1), []byte("stale-1"))
	require.Error(t, err)
	_ = stale.Close(ctx, err)
	require.NoError(t, fresh.Close(ctx, nil))

	reads, err := env.query.ResolveReads(ctx, []QuerySpec{{Sequence: "run", Topic: "imu"}})
	require.NoError(t, err)
	require.Len(t, reads[0].Chunks, 2)
	data, err := env.payloads.Read(ctx, reads[0].Chunks[1])
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", string(data))
	assert.Len(t, storedKeys(t, env), 2, "the rejected attempt left nothing behind")
}

func TestIngest_UnknownCommitOutcomeKeepsPayload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWithRegistry(t, &lostCommitRegistry{Registry: memrepo.NewRegistry()})
	env.seed(t, "run", "imu")

	up, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	_, err = up.Append(ctx, *rng(0, 1), []byte("maybe"))
	require.Error(t, err)
	require.NoError(t, up.Close(ctx, err))

	assert.Len(t, storedKeys(t, env), 1, "the payload may back a committed record")
	info, err := env.resources.TopicSystemInfo(ctx, "run/imu")
	require.NoError(t, err)
	assert.Zero(t, info.ChunksNumber)
}

func TestIngest_RejectedRecordRemovesPayload(t *testing.T) {
	ctx := context.Background()
	repo := &failingRegistry{Registry: memrepo.NewRegistry()}
	env := newTestEnvWithRegistry(t, repo)
	env.seed(t, "run", "imu")

	up, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	_, err = up.Append(ctx, *rng(0, 1), []byte("lost"))
	require.Error(t, err)
	require.NoError(t, up.Close(ctx, err))

	assert.Empty(t, storedKeys(t, env))

	info, err := env.resources.TopicSystemInfo(ctx, "run/imu")
	require.NoError(t, err)
	assert.Zero(t, info.ChunksNumber)
	assert.False(t, info.IsLocked, "the lease is released on failure")

	notes, err := env.notify.List(ctx, "run/imu")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyUploadFailed, notes[0].Type)
	require.NotNil(t, notes[0].Msg)
	assert.Contains(t, *notes[0].Msg, "disk full")
}

func TestIngest_AppendAfterClose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "run", "imu")

	up, err := env.ingest.BeginByName(ctx, "run/imu")
	require.NoError(t, err)
	require.NoError(t, up.Close(ctx, nil))
	require.NoError(t, up.Close(ctx, nil))

	_, err = up.Append(ctx, *rng(0, 1), []byte("x"))
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}
