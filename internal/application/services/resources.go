// Package services holds the domain operations behind the action catalog and the bulk endpoints.
package services

import (
	"context"
	"encoding/json"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"mosaicod/internal/application/validation"
	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// ResourceService manages sequences, topics and layers
type ResourceService struct {
	repo     ports.Registry
	locks    *LockManager
	payloads *PayloadStore
	logger   logr.Logger
}

// NewResourceService creates a new ResourceService
func NewResourceService(repo ports.Registry, locks *LockManager, payloads *PayloadStore, logger logr.Logger) *ResourceService {
	return &ResourceService{
		repo:     repo,
		locks:    locks,
		payloads: payloads,
		logger:   logger.WithName("resources"),
	}
}

// CreateSequence registers a new sequence and returns its key
func (s *ResourceService) CreateSequence(ctx context.Context, name string, metadata json.RawMessage) (models.ResourceID, error) {
	req, err := validation.ValidateSequenceCreate(name, metadata)
	if err != nil {
		return models.ResourceID{}, err
	}
	seq := models.NewSequence(req.Locator, req.Metadata)

	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return models.ResourceID{}, errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.CreateSequence(ctx, seq); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to create sequence")
	}
	if err := writer.Commit(); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to commit sequence creation")
	}

	s.logger.V(1).Info("sequence created", "sequence", seq.Name(), "key", seq.ID.String())
	return seq.ID, nil
}

// CreateTopic registers a topic under the sequence identified by sequenceKey.
// It fails with ports.ErrLocked while the sequence is held by a writer.
func (s *ResourceService) CreateTopic(ctx context.Context, sequenceKey, name, format, ontology string, metadata json.RawMessage) (models.ResourceID, error) {
	seqID, err := models.ParseResourceID(sequenceKey)
	if err != nil {
		return models.ResourceID{}, errors.Wrapf(ports.ErrInvalidInput, "sequence_key '%s' is not a resource key", sequenceKey)
	}

	seq, err := s.sequenceByID(ctx, seqID)
	if err != nil {
		return models.ResourceID{}, err
	}

	req, err := validation.ValidateTopicCreate(seq.Locator, name, format, ontology, metadata)
	if err != nil {
		return models.ResourceID{}, err
	}

	locked, err := s.locks.IsLocked(ctx, ports.SequenceLockKey(seq.Locator))
	if err != nil {
		return models.ResourceID{}, err
	}
	if locked {
		return models.ResourceID{}, errors.Wrapf(ports.ErrLocked, "sequence '%s'", seq.Name())
	}

	topic := models.NewTopic(seq.ID, req.Locator, req.SerializationFormat, req.OntologyTag, req.Metadata)

	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return models.ResourceID{}, errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.CreateTopic(ctx, topic); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to create topic")
	}
	if err := writer.Commit(); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to commit topic creation")
	}

	s.logger.V(1).Info("topic created", "topic", topic.Name(), "key", topic.ID.String())
	return topic.ID, nil
}

// GetSequence returns a sequence by name
func (s *ResourceService) GetSequence(ctx context.Context, name string) (*models.Sequence, error) {
	loc, err := models.NewSequenceLocator(name)
	if err != nil {
		return nil, errors.Wrap(ports.ErrInvalidName, err.Error())
	}
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	return reader.GetSequenceByName(ctx, loc)
}

// GetTopic returns a topic by name
func (s *ResourceService) GetTopic(ctx context.Context, name string) (*models.Topic, error) {
	loc, err := models.NewTopicLocator(name)
	if err != nil {
		return nil, errors.Wrap(ports.ErrInvalidName, err.Error())
	}
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	return reader.GetTopicByName(ctx, loc)
}

// GetTopicByKey returns a topic by its resource key
func (s *ResourceService) GetTopicByKey(ctx context.Context, key string) (*models.Topic, error) {
	id, err := models.ParseResourceID(key)
	if err != nil {
		return nil, errors.Wrapf(ports.ErrInvalidInput, "'%s' is not a resource key", key)
	}
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	return reader.GetTopicByID(ctx, id)
}

// ListSequences returns every sequence in creation order
func (s *ResourceService) ListSequences(ctx context.Context) ([]models.Sequence, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	var out []models.Sequence
	err = reader.ListSequences(ctx, func(seq models.Sequence) error {
		out = append(out, seq)
		return nil
	}, ports.EmptyScope{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sequences")
	}
	return out, nil
}

// ListTopics returns the topics of a sequence in creation order
func (s *ResourceService) ListTopics(ctx context.Context, seq models.Sequence) ([]models.Topic, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	return listTopics(ctx, reader, seq.ID)
}

// SequenceSystemInfo reports the accounting of a sequence
func (s *ResourceService) SequenceSystemInfo(ctx context.Context, name string) (models.SequenceSystemInfo, error) {
	seq, err := s.GetSequence(ctx, name)
	if err != nil {
		return models.SequenceSystemInfo{}, err
	}
	topics, err := s.ListTopics(ctx, *seq)
	if err != nil {
		return models.SequenceSystemInfo{}, err
	}

	total := seq.MetadataSize()
	for _, t := range topics {
		total += t.TotalSizeBytes
	}

	locked, err := s.locks.IsLocked(ctx, ports.SequenceLockKey(seq.Locator))
	if err != nil {
		return models.SequenceSystemInfo{}, err
	}
	return models.SequenceSystemInfo{
		TotalSizeBytes: total,
		IsLocked:       locked,
		CreatedAt:      seq.CreatedAt,
	}, nil
}

// TopicSystemInfo reports the accounting of a topic
func (s *ResourceService) TopicSystemInfo(ctx context.Context, name string) (models.TopicSystemInfo, error) {
	topic, err := s.GetTopic(ctx, name)
	if err != nil {
		return models.TopicSystemInfo{}, err
	}
	locked, err := s.locks.IsLocked(ctx, ports.TopicLockKey(topic.Locator))
	if err != nil {
		return models.TopicSystemInfo{}, err
	}
	return models.TopicSystemInfo{
		ChunksNumber:   topic.ChunksNumber,
		TotalSizeBytes: topic.TotalSizeBytes,
		IsLocked:       locked,
		CreatedAt:      topic.CreatedAt,
	}, nil
}

// DeleteSequence removes a sequence, its topics and every stored payload
func (s *ResourceService) DeleteSequence(ctx context.Context, name string, token models.DataLossToken) (models.ResourceID, error) {
	if token == nil {
		return models.ResourceID{}, errors.Wrap(ports.ErrInvalidInput, "deleting a sequence requires a data loss acknowledgement")
	}
	seq, err := s.GetSequence(ctx, name)
	if err != nil {
		return models.ResourceID{}, err
	}

	lease, err := s.acquire(ctx, ports.SequenceLockKey(seq.Locator))
	if err != nil {
		return models.ResourceID{}, err
	}
	defer lease.Release(ctx)

	topics, err := s.ListTopics(ctx, *seq)
	if err != nil {
		return models.ResourceID{}, err
	}
	for _, t := range topics {
		locked, err := s.locks.IsLocked(ctx, ports.TopicLockKey(t.Locator))
		if err != nil {
			return models.ResourceID{}, err
		}
		if locked {
			return models.ResourceID{}, errors.Wrapf(ports.ErrLocked, "topic '%s' is being written", t.Name())
		}
	}

	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return models.ResourceID{}, errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.DeleteSequence(ctx, seq.ID, token); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to delete sequence")
	}
	if err := writer.Commit(); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to commit sequence deletion")
	}

	// records are gone, leftover payloads are only unreachable bytes
	if err := s.payloads.DeletePrefix(ctx, ports.SequenceStoragePrefix(seq.ID)); err != nil {
		s.logger.Error(err, "failed to remove sequence payloads", "sequence", seq.Name())
	}

	s.repo.Subject().Notify(models.NewNotify(seq.Name(), models.NotifyDeleted, "sequence deleted"))
	s.logger.Info("sequence deleted", "sequence", seq.Name(), "topics", len(topics))
	return seq.ID, nil
}

// DeleteTopic removes a topic and its stored payloads
func (s *ResourceService) DeleteTopic(ctx context.Context, name string, token models.DataLossToken) (models.ResourceID, error) {
	if token == nil {
		return models.ResourceID{}, errors.Wrap(ports.ErrInvalidInput, "deleting a topic requires a data loss acknowledgement")
	}
	topic, err := s.GetTopic(ctx, name)
	if err != nil {
		return models.ResourceID{}, err
	}

	locked, err := s.locks.IsLocked(ctx, ports.SequenceLockKey(topic.Locator.Sequence()))
	if err != nil {
		return models.ResourceID{}, err
	}
	if locked {
		return models.ResourceID{}, errors.Wrapf(ports.ErrLocked, "sequence '%s'", topic.Locator.Sequence().Name())
	}

	lease, err := s.acquire(ctx, ports.TopicLockKey(topic.Locator))
	if err != nil {
		return models.ResourceID{}, err
	}
	defer lease.Release(ctx)

	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return models.ResourceID{}, errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.DeleteTopic(ctx, topic.ID, token); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to delete topic")
	}
	if err := writer.Commit(); err != nil {
		return models.ResourceID{}, errors.WithMessage(err, "failed to commit topic deletion")
	}

	if err := s.payloads.DeletePrefix(ctx, ports.TopicStoragePrefix(topic.SequenceID, topic.ID)); err != nil {
		s.logger.Error(err, "failed to remove topic payloads", "topic", topic.Name())
	}

	s.repo.Subject().Notify(models.NewNotify(topic.Name(), models.NotifyDeleted, "topic deleted"))
	s.logger.Info("topic deleted", "topic", topic.Name())
	return topic.ID, nil
}

// CreateLayer registers a processing layer
func (s *ResourceService) CreateLayer(ctx context.Context, name, description string) error {
	if name == "" {
		return validation.NewNameError("name", "layer name is empty")
	}
	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.CreateLayer(ctx, models.Layer{Name: name, Description: description}); err != nil {
		return errors.WithMessage(err, "failed to create layer")
	}
	return errors.WithMessage(writer.Commit(), "failed to commit layer creation")
}

// ListLayers returns layers in creation order
func (s *ResourceService) ListLayers(ctx context.Context, scope ports.Scope) ([]models.Layer, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	var layers []models.Layer
	err = reader.ListLayers(ctx, func(l models.Layer) error {
		layers = append(layers, l)
		return nil
	}, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list layers")
	}
	return layers, nil
}

func (s *ResourceService) sequenceByID(ctx context.Context, id models.ResourceID) (*models.Sequence, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	return reader.GetSequenceByID(ctx, id)
}

// acquire takes a lease, reporting a held lock as ports.ErrLocked
func (s *ResourceService) acquire(ctx context.Context, key string) (*Lease, error) {
	lease, err := s.locks.Acquire(ctx, key)
	if errors.Is(err, ports.ErrAlreadyLocked) {
		return nil, errors.Wrapf(ports.ErrLocked, "%v", err)
	}
	return lease, err
}

func listTopics(ctx context.Context, reader ports.ReaderNoClose, seqID models.ResourceID) ([]models.Topic, error) {
	var topics []models.Topic
	err := reader.ListTopics(ctx, seqID, func(t models.Topic) error {
		topics = append(topics, t)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list topics")
	}
	return topics, nil
}
