package mem

import (
	"context"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

type reader struct {
	state *state
	ctx   context.Context
}

func (r *reader) Close() error {
	return nil
}

func (r *reader) GetSequenceByName(_ context.Context, locator models.SequenceLocator) (*models.Sequence, error) {
	id, ok := r.state.seqByName[locator.Name()]
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "sequence '%s'", locator.Name())
	}
	seq := r.state.sequences[id]
	return &seq, nil
}

func (r *reader) GetSequenceByID(_ context.Context, id models.ResourceID) (*models.Sequence, error) {
	seq, ok := r.state.sequences[id]
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "sequence '%s'", id)
	}
	return &seq, nil
}

func (r *reader) ListSequences(ctx context.Context, consume func(models.Sequence) error, scope ports.Scope) error {
	seqs := make([]models.Sequence, 0, len(r.state.sequences))
	for _, seq := range r.state.sequences {
		if ports.InScope(scope, seq.Name()) {
			seqs = append(seqs, seq)
		}
	}
	sortSequences(seqs)
	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := consume(seq); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) GetTopicByName(_ context.Context, locator models.TopicLocator) (*models.Topic, error) {
	id, ok := r.state.topicByName[locator.Name()]
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "topic '%s'", locator.Name())
	}
	t := r.state.topics[id]
	return &t, nil
}

func (r *reader) GetTopicByID(_ context.Context, id models.ResourceID) (*models.Topic, error) {
	t, ok := r.state.topics[id]
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "topic '%s'", id)
	}
	return &t, nil
}

func (r *reader) ListTopics(ctx context.Context, sequenceID models.ResourceID, consume func(models.Topic) error) error {
	if _, ok := r.state.sequences[sequenceID]; !ok {
		return errors.Wrapf(ports.ErrNotFound, "sequence '%s'", sequenceID)
	}
	for _, id := range r.state.topicOrder[sequenceID] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := consume(r.state.topics[id]); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) ListChunks(ctx context.Context, topicID models.ResourceID, consume func(models.Chunk) error, opts ...ports.Option) error {
	if _, ok := r.state.topics[topicID]; !ok {
		return errors.Wrapf(ports.ErrNotFound, "topic '%s'", topicID)
	}
	window, hasWindow := ports.RangeFromOptions(opts...)
	for _, c := range r.state.chunks[topicID] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hasWindow && !c.Range.Intersects(window) {
			continue
		}
		if err := consume(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) ListNotifies(ctx context.Context, consume func(models.Notify) error, scope ports.Scope) error {
	for _, n := range r.state.notifies {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ports.InScope(scope, n.Target) {
			continue
		}
		if err := consume(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) ListLayers(ctx context.Context, consume func(models.Layer) error, scope ports.Scope) error {
	for _, l := range r.state.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ports.InScope(scope, l.Name) {
			continue
		}
		if err := consume(l); err != nil {
			return err
		}
	}
	return nil
}
