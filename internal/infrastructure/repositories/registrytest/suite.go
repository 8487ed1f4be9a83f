// Package registrytest holds behaviour checks shared by every ports.Registry backend.
package registrytest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// Run executes the shared registry checks against registries built by newRegistry
func Run(t *testing.T, newRegistry func(t *testing.T) ports.Registry) {
	t.Run("SequenceLifecycle", func(t *testing.T) { testSequenceLifecycle(t, newRegistry(t)) })
	t.Run("TopicLifecycle", func(t *testing.T) { testTopicLifecycle(t, newRegistry(t)) })
	t.Run("ChunkAccounting", func(t *testing.T) { testChunkAccounting(t, newRegistry(t)) })
	t.Run("AbortDiscards", func(t *testing.T) { testAbortDiscards(t, newRegistry(t)) })
	t.Run("DeleteSequence", func(t *testing.T) { testDeleteSequence(t, newRegistry(t)) })
	t.Run("NotifiesAndLayers", func(t *testing.T) { testNotifiesAndLayers(t, newRegistry(t)) })
}

// MustSequence creates and commits a sequence
func MustSequence(t *testing.T, reg ports.Registry, name string) models.Sequence {
	t.Helper()
	ctx := context.Background()
	loc, err := models.NewSequenceLocator(name)
	require.NoError(t, err)
	seq := models.NewSequence(loc, json.RawMessage(`{"driver":"alice"}`))

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.CreateSequence(ctx, seq))
	require.NoError(t, w.Commit())
	return seq
}

// MustTopic creates and commits a topic under seq
func MustTopic(t *testing.T, reg ports.Registry, seq models.Sequence, path string) models.Topic {
	t.Helper()
	ctx := context.Background()
	loc, err := models.NewTopicLocatorUnder(seq.Locator, path)
	require.NoError(t, err)
	topic := models.NewTopic(seq.ID, loc, "default", "mock", nil)

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.CreateTopic(ctx, topic))
	require.NoError(t, w.Commit())
	return topic
}

// MustChunk appends and commits the next chunk of topic
func MustChunk(t *testing.T, reg ports.Registry, topic models.Topic, index int64, start, end int64, size int64) models.Chunk {
	t.Helper()
	ctx := context.Background()
	c := models.Chunk{
		TopicID:    topic.ID,
		Index:      index,
		Range:      models.TimestampRange{Start: models.Timestamp(start), End: models.Timestamp(end)},
		SizeBytes:  size,
		StorageKey: ports.ChunkStorageKey(topic.SequenceID, topic.ID, index, "a"),
		Digest:     "00",
	}
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AppendChunk(ctx, c))
	require.NoError(t, w.Commit())
	return c
}

func reader(t *testing.T, reg ports.Registry) ports.Reader {
	t.Helper()
	r, err := reg.Reader(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testSequenceLifecycle(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	seq := MustSequence(t, reg, "test_sequence")

	got, err := reader(t, reg).GetSequenceByName(ctx, seq.Locator)
	require.NoError(t, err)
	assert.Equal(t, seq.ID, got.ID)
	assert.JSONEq(t, `{"driver":"alice"}`, string(got.UserMetadata))

	byID, err := reader(t, reg).GetSequenceByID(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, "test_sequence", byID.Name())

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	err = w.CreateSequence(ctx, models.NewSequence(seq.Locator, nil))
	if err == nil {
		err = w.Commit()
	} else {
		w.Abort()
	}
	assert.True(t, errors.Is(err, ports.ErrConflict), "got %v", err)

	missing, _ := models.NewSequenceLocator("missing")
	_, err = reader(t, reg).GetSequenceByName(ctx, missing)
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	MustSequence(t, reg, "other")
	var names []string
	require.NoError(t, reader(t, reg).ListSequences(ctx, func(s models.Sequence) error {
		names = append(names, s.Name())
		return nil
	}, ports.NewNameScope("other")))
	assert.Equal(t, []string{"other"}, names)
}

func testTopicLifecycle(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	seq := MustSequence(t, reg, "seq")
	first := MustTopic(t, reg, seq, "b/camera")
	second := MustTopic(t, reg, seq, "a/imu")

	got, err := reader(t, reg).GetTopicByName(ctx, first.Locator)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, seq.ID, got.SequenceID)
	assert.Equal(t, "mock", got.OntologyTag)
	assert.Equal(t, int64(0), got.ChunksNumber)

	var order []models.ResourceID
	require.NoError(t, reader(t, reg).ListTopics(ctx, seq.ID, func(tp models.Topic) error {
		order = append(order, tp.ID)
		return nil
	}))
	assert.Equal(t, []models.ResourceID{first.ID, second.ID}, order)

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	err = w.CreateTopic(ctx, models.NewTopic(seq.ID, first.Locator, "", "", nil))
	if err == nil {
		err = w.Commit()
	} else {
		w.Abort()
	}
	assert.True(t, errors.Is(err, ports.ErrConflict), "got %v", err)

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	orphanLoc, _ := models.NewTopicLocator("nowhere/topic")
	err = w.CreateTopic(ctx, models.NewTopic(models.NewResourceID(), orphanLoc, "", "", nil))
	if err == nil {
		err = w.Commit()
	} else {
		w.Abort()
	}
	assert.True(t, errors.Is(err, ports.ErrNotFound), "got %v", err)

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	require.Error(t, w.DeleteTopic(ctx, second.ID, nil))
	w.Abort()

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.DeleteTopic(ctx, second.ID, models.AllowDataLoss()))
	require.NoError(t, w.Commit())
	_, err = reader(t, reg).GetTopicByID(ctx, second.ID)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func testChunkAccounting(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	seq := MustSequence(t, reg, "seq")
	topic := MustTopic(t, reg, seq, "lidar")

	var total int64
	for i := int64(0); i < 5; i++ {
		size := 100 + i
		MustChunk(t, reg, topic, i, i*10, i*10+9, size)
		total += size
	}

	got, err := reader(t, reg).GetTopicByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ChunksNumber)
	assert.Equal(t, total, got.TotalSizeBytes)

	var indices []int64
	require.NoError(t, reader(t, reg).ListChunks(ctx, topic.ID, func(c models.Chunk) error {
		indices = append(indices, c.Index)
		return nil
	}))
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, indices)

	indices = nil
	require.NoError(t, reader(t, reg).ListChunks(ctx, topic.ID, func(c models.Chunk) error {
		indices = append(indices, c.Index)
		return nil
	}, ports.WithRange(models.TimestampRange{Start: 15, End: 20})))
	assert.Equal(t, []int64{1, 2}, indices)

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	err = w.AppendChunk(ctx, models.Chunk{TopicID: topic.ID, Index: 2, SizeBytes: 1, StorageKey: "x"})
	if err == nil {
		err = w.Commit()
	} else {
		w.Abort()
	}
	assert.True(t, errors.Is(err, ports.ErrConflict), "got %v", err)
}

func testAbortDiscards(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	loc, _ := models.NewSequenceLocator("aborted")
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.CreateSequence(ctx, models.NewSequence(loc, nil)))
	w.Abort()

	_, err = reader(t, reg).GetSequenceByName(ctx, loc)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func testDeleteSequence(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	seq := MustSequence(t, reg, "doomed")
	topic := MustTopic(t, reg, seq, "t")
	MustChunk(t, reg, topic, 0, 0, 1, 10)

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.DeleteSequence(ctx, seq.ID, models.AllowDataLoss()))
	require.NoError(t, w.Commit())

	_, err = reader(t, reg).GetSequenceByID(ctx, seq.ID)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	_, err = reader(t, reg).GetTopicByName(ctx, topic.Locator)
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	// the name is free again
	MustSequence(t, reg, "doomed")
}

func testNotifiesAndLayers(t *testing.T, reg ports.Registry) {
	ctx := context.Background()
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.CreateNotify(ctx, models.NewNotify("seq", models.NotifyError, "boom")))
	require.NoError(t, w.CreateNotify(ctx, models.NewNotify("other", models.NotifyUploadCompleted, "")))
	require.NoError(t, w.CreateLayer(ctx, models.Layer{Name: "labels", Description: "manual labels"}))
	require.NoError(t, w.Commit())

	var notifies []models.Notify
	require.NoError(t, reader(t, reg).ListNotifies(ctx, func(n models.Notify) error {
		notifies = append(notifies, n)
		return nil
	}, ports.NewNameScope("seq")))
	require.Len(t, notifies, 1)
	assert.Equal(t, models.NotifyError, notifies[0].Type)
	require.NotNil(t, notifies[0].Msg)
	assert.Equal(t, "boom", *notifies[0].Msg)

	notifies = nil
	require.NoError(t, reader(t, reg).ListNotifies(ctx, func(n models.Notify) error {
		notifies = append(notifies, n)
		return nil
	}, ports.EmptyScope{}))
	assert.Len(t, notifies, 2)

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	err = w.CreateLayer(ctx, models.Layer{Name: "labels"})
	if err == nil {
		err = w.Commit()
	} else {
		w.Abort()
	}
	assert.True(t, errors.Is(err, ports.ErrConflict), "got %v", err)

	var layers []models.Layer
	require.NoError(t, reader(t, reg).ListLayers(ctx, func(l models.Layer) error {
		layers = append(layers, l)
		return nil
	}, nil))
	assert.Equal(t, []models.Layer{{Name: "labels", Description: "manual labels"}}, layers)
}
