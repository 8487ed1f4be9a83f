package services

import (
	"context"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// QuerySpec selects a sequence, optionally one topic of it, optionally a time window.
// Topic is the path relative to the sequence; empty selects every topic.
type QuerySpec struct {
	Sequence string
	Topic    string
	Range    *models.TimestampRange
}

// TopicRead is the chunk list of one selected topic, fixed when the read was resolved
type TopicRead struct {
	Locator models.TopicLocator
	Topic   models.Topic
	Chunks  []models.Chunk
}

// QueryResolver turns query specs into grouped topic selections
type QueryResolver struct {
	repo ports.Registry
}

// NewQueryResolver creates a new QueryResolver
func NewQueryResolver(repo ports.Registry) *QueryResolver {
	return &QueryResolver{repo: repo}
}

// Resolve groups the specs by sequence. If any spec does not resolve the whole
// query fails with ports.ErrNotFound.
func (q *QueryResolver) Resolve(ctx context.Context, specs []QuerySpec) (*models.SequenceTopicGroupSet, error) {
	reader, err := q.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	set, _, err := q.resolve(ctx, reader, specs)
	return set, err
}

// ResolveReads resolves the specs and collects, for every selected topic, the
// committed chunks whose span intersects its range. Chunks committed later are not included.
func (q *QueryResolver) ResolveReads(ctx context.Context, specs []QuerySpec) ([]TopicRead, error) {
	reader, err := q.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	set, topics, err := q.resolve(ctx, reader, specs)
	if err != nil {
		return nil, err
	}

	var reads []TopicRead
	for _, g := range set.Groups() {
		for _, loc := range g.Topics {
			topic := topics[loc.Name()]
			var opts []ports.Option
			if loc.Range != nil {
				opts = append(opts, ports.WithRange(*loc.Range))
			}
			read := TopicRead{Locator: loc, Topic: topic}
			err := reader.ListChunks(ctx, topic.ID, func(c models.Chunk) error {
				read.Chunks = append(read.Chunks, c)
				return nil
			}, opts...)
			if err != nil {
				return nil, errors.WithMessagef(err, "failed to list chunks of '%s'", loc.Name())
			}
			reads = append(reads, read)
		}
	}
	return reads, nil
}

func (q *QueryResolver) resolve(ctx context.Context, reader ports.ReaderNoClose, specs []QuerySpec) (*models.SequenceTopicGroupSet, map[string]models.Topic, error) {
	set := models.NewSequenceTopicGroupSet()
	topics := make(map[string]models.Topic)
	sequences := make(map[string]*models.Sequence)

	for _, spec := range specs {
		seqLoc, err := models.NewSequenceLocator(spec.Sequence)
		if err != nil {
			return nil, nil, errors.Wrap(ports.ErrInvalidName, err.Error())
		}
		seq, ok := sequences[seqLoc.Name()]
		if !ok {
			seq, err = reader.GetSequenceByName(ctx, seqLoc)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "query sequence '%s'", seqLoc.Name())
			}
			sequences[seqLoc.Name()] = seq
		}
		set.AddSequence(seq.Locator)

		if spec.Topic == "" {
			all, err := listTopics(ctx, reader, seq.ID)
			if err != nil {
				return nil, nil, err
			}
			for _, t := range all {
				topics[t.Name()] = t
				set.Add(withRange(t.Locator, spec.Range))
			}
			continue
		}

		loc, err := models.NewTopicLocatorUnder(seq.Locator, spec.Topic)
		if err != nil {
			return nil, nil, errors.Wrap(ports.ErrInvalidName, err.Error())
		}
		topic, ok := topics[loc.Name()]
		if !ok {
			found, err := reader.GetTopicByName(ctx, loc)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "query topic '%s'", loc.Name())
			}
			topic = *found
			topics[loc.Name()] = topic
		}
		set.Add(withRange(topic.Locator, spec.Range))
	}
	return set, topics, nil
}

func withRange(loc models.TopicLocator, r *models.TimestampRange) models.TopicLocator {
	if r == nil {
		return loc.WithoutRange()
	}
	return loc.WithRange(*r)
}
