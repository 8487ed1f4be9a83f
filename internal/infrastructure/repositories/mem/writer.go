package mem

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// writer stages operations on a private copy so errors surface eagerly,
// then replays them on the latest committed state at Commit.
type writer struct {
	registry *Registry
	ctx      context.Context
	staged   *state
	ops      []func(*state) error
	done     bool
}

func (w *writer) stage(op func(*state) error) error {
	if w.done {
		return errors.New("writer is already committed or aborted")
	}
	if w.staged == nil {
		w.staged = w.registry.db.snapshot().clone()
	}
	if err := op(w.staged); err != nil {
		return err
	}
	w.ops = append(w.ops, op)
	return nil
}

func (w *writer) CreateSequence(_ context.Context, seq models.Sequence) error {
	return w.stage(func(s *state) error { return s.createSequence(seq) })
}

func (w *writer) CreateTopic(_ context.Context, topic models.Topic) error {
	return w.stage(func(s *state) error { return s.createTopic(topic) })
}

func (w *writer) AppendChunk(_ context.Context, chunk models.Chunk) error {
	return w.stage(func(s *state) error { return s.appendChunk(chunk) })
}

func (w *writer) DeleteTopic(_ context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a topic requires a data loss token")
	}
	return w.stage(func(s *state) error { return s.deleteTopic(id) })
}

func (w *writer) DeleteSequence(_ context.Context, id models.ResourceID, token models.DataLossToken) error {
	if token == nil {
		return errors.Wrap(ports.ErrInvalidInput, "deleting a sequence requires a data loss token")
	}
	return w.stage(func(s *state) error { return s.deleteSequence(id) })
}

func (w *writer) CreateNotify(_ context.Context, notify models.Notify) error {
	return w.stage(func(s *state) error {
		s.notifies = append(s.notifies, notify)
		return nil
	})
}

func (w *writer) CreateLayer(_ context.Context, layer models.Layer) error {
	return w.stage(func(s *state) error { return s.createLayer(layer) })
}

func (w *writer) Commit() error {
	if w.done {
		return errors.New("writer is already committed or aborted")
	}
	w.done = true
	if len(w.ops) == 0 {
		return nil
	}
	return w.registry.db.apply(w.ops)
}

func (w *writer) Abort() {
	w.done = true
	w.ops = nil
	w.staged = nil
}

func sortSequences(seqs []models.Sequence) {
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].CreatedAt.Equal(seqs[j].CreatedAt) {
			return seqs[i].Name() < seqs[j].Name()
		}
		return seqs[i].CreatedAt.Before(seqs[j].CreatedAt)
	})
}
