package services

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/telemetry"
)

// IngestService runs bulk writes. A topic accepts one upload at a time.
type IngestService struct {
	repo      ports.Registry
	locks     *LockManager
	payloads  *PayloadStore
	telemetry *telemetry.Instruments
	logger    logr.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(repo ports.Registry, locks *LockManager, payloads *PayloadStore, tel *telemetry.Instruments, logger logr.Logger) *IngestService {
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &IngestService{
		repo:      repo,
		locks:     locks,
		payloads:  payloads,
		telemetry: tel,
		logger:    logger.WithName("ingest"),
	}
}

// BeginByKey starts an upload to the topic with the given resource key
func (s *IngestService) BeginByKey(ctx context.Context, key string) (*Upload, error) {
	id, err := models.ParseResourceID(key)
	if err != nil {
		return nil, errors.Wrapf(ports.ErrInvalidInput, "topic_key '%s' is not a resource key", key)
	}
	topic, err := s.topic(ctx, func(r ports.Reader) (*models.Topic, error) {
		return r.GetTopicByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, topic)
}

// BeginByName starts an upload to the named topic
func (s *IngestService) BeginByName(ctx context.Context, name string) (*Upload, error) {
	loc, err := models.NewTopicLocator(name)
	if err != nil {
		return nil, errors.Wrap(ports.ErrInvalidName, err.Error())
	}
	topic, err := s.topic(ctx, func(r ports.Reader) (*models.Topic, error) {
		return r.GetTopicByName(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, topic)
}

func (s *IngestService) begin(ctx context.Context, topic *models.Topic) (*Upload, error) {
	seqLocked, err := s.locks.IsLocked(ctx, ports.SequenceLockKey(topic.Locator.Sequence()))
	if err != nil {
		return nil, err
	}
	if seqLocked {
		return nil, errors.Wrapf(ports.ErrLocked, "sequence '%s'", topic.Locator.Sequence().Name())
	}

	lease, err := s.locks.Acquire(ctx, ports.TopicLockKey(topic.Locator))
	if err != nil {
		if errors.Is(err, ports.ErrAlreadyLocked) {
			return nil, errors.Wrapf(ports.ErrLocked, "topic '%s' has an upload in progress", topic.Name())
		}
		return nil, err
	}

	// totals may have moved between the lookup and the lease
	fresh, err := s.topic(ctx, func(r ports.Reader) (*models.Topic, error) {
		return r.GetTopicByID(ctx, topic.ID)
	})
	if err != nil {
		_ = lease.Release(ctx)
		return nil, err
	}

	spanCtx, end := s.telemetry.Track(ctx, "upload", attribute.String("topic", fresh.Name()))
	s.logger.Info("upload started", "topic", fresh.Name(), "next_chunk", fresh.ChunksNumber)
	return &Upload{
		svc:     s,
		lease:   lease,
		topic:   *fresh,
		spanCtx: spanCtx,
		endSpan: end,
		started: time.Now(),
	}, nil
}

func (s *IngestService) topic(ctx context.Context, get func(ports.Reader) (*models.Topic, error)) (*models.Topic, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()
	return get(reader)
}

// Upload is an open bulk write holding the topic lease
type Upload struct {
	svc   *IngestService
	lease *Lease
	topic models.Topic

	spanCtx context.Context
	endSpan func(error)
	started time.Time
	chunks  int
	closed  bool
}

// Topic returns the topic with the totals committed so far
func (u *Upload) Topic() models.Topic {
	return u.topic
}

// Append stores one chunk and commits its record. The payload is visible to
// readers only after the record commit. A payload whose record was rejected is
// deleted; when the commit itself fails its outcome is unknown and the payload
// is left in place under its attempt-unique key.
func (u *Upload) Append(ctx context.Context, r models.TimestampRange, payload []byte) (models.Chunk, error) {
	if u.closed {
		return models.Chunk{}, errors.Wrap(ports.ErrInvalidInput, "upload is closed")
	}
	if err := u.lease.Err(); err != nil {
		return models.Chunk{}, err
	}

	index := u.topic.ChunksNumber
	key := ports.ChunkStorageKey(u.topic.SequenceID, u.topic.ID, index, uuid.NewString())

	stored, err := u.svc.payloads.Write(ctx, key, payload)
	if err != nil {
		u.discard(ctx, key)
		return models.Chunk{}, err
	}
	chunk := models.Chunk{
		TopicID:    u.topic.ID,
		Index:      index,
		Range:      r,
		SizeBytes:  stored.SizeBytes,
		StorageKey: stored.Key,
		Digest:     stored.Digest,
		CreatedAt:  time.Now().UTC(),
	}

	committed, err := u.commit(ctx, chunk)
	if err != nil {
		if committed {
			u.svc.logger.Error(err, "chunk commit outcome unknown, payload kept", "topic", u.topic.Name(), "key", key)
		} else {
			u.discard(ctx, key)
		}
		return models.Chunk{}, err
	}

	u.topic.ChunksNumber++
	u.topic.TotalSizeBytes += chunk.SizeBytes
	u.chunks++
	u.svc.telemetry.ChunkWritten(u.spanCtx, u.topic.Name(), stored.StoredBytes)
	return chunk, nil
}

// commit records the chunk. The flag reports whether Commit was attempted,
// after which a failure does not prove the record is absent.
func (u *Upload) commit(ctx context.Context, chunk models.Chunk) (bool, error) {
	writer, err := u.svc.repo.Writer(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.AppendChunk(ctx, chunk); err != nil {
		return false, errors.WithMessagef(err, "failed to record chunk %d of '%s'", chunk.Index, u.topic.Name())
	}
	if err := writer.Commit(); err != nil {
		return true, errors.WithMessagef(err, "failed to commit chunk %d of '%s'", chunk.Index, u.topic.Name())
	}
	return true, nil
}

func (u *Upload) discard(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.svc.locks.TTL())
	defer cancel()
	if err := u.svc.payloads.Delete(cleanupCtx, key); err != nil {
		u.svc.logger.Error(err, "failed to remove orphan payload", "key", key)
	}
}

// Close ends the upload, releases the lease and emits the completion event.
// A non-nil cause marks the upload as failed; committed chunks stay.
func (u *Upload) Close(ctx context.Context, cause error) error {
	if u.closed {
		return nil
	}
	u.closed = true

	releaseErr := u.lease.Release(ctx)
	if cause == nil && releaseErr != nil && errors.Is(releaseErr, ErrLeaseLost) {
		cause = releaseErr
	}

	name := u.topic.Name()
	if cause != nil {
		u.svc.repo.Subject().Notify(models.NewNotify(name, models.NotifyUploadFailed, cause.Error()))
		u.svc.logger.Info("upload failed", "topic", name, "chunks", u.chunks, "error", cause.Error())
	} else {
		u.svc.repo.Subject().Notify(models.NewNotify(name, models.NotifyUploadCompleted, ""))
		u.svc.logger.Info("upload completed", "topic", name, "chunks", u.chunks,
			"total_size_bytes", u.topic.TotalSizeBytes, "elapsed", time.Since(u.started).String())
	}
	u.endSpan(cause)

	if releaseErr != nil && !errors.Is(releaseErr, ErrLeaseLost) {
		return releaseErr
	}
	return nil
}
