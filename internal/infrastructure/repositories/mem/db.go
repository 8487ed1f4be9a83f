package mem

import (
	"sync"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// state is a snapshot of the in-memory database
type state struct {
	sequences   map[models.ResourceID]models.Sequence
	seqByName   map[string]models.ResourceID
	topics      map[models.ResourceID]models.Topic
	topicByName map[string]models.ResourceID
	// topicOrder keeps topics of each sequence in creation order
	topicOrder map[models.ResourceID][]models.ResourceID
	chunks     map[models.ResourceID][]models.Chunk
	notifies   []models.Notify
	layers     []models.Layer
}

func newState() *state {
	return &state{
		sequences:   make(map[models.ResourceID]models.Sequence),
		seqByName:   make(map[string]models.ResourceID),
		topics:      make(map[models.ResourceID]models.Topic),
		topicByName: make(map[string]models.ResourceID),
		topicOrder:  make(map[models.ResourceID][]models.ResourceID),
		chunks:      make(map[models.ResourceID][]models.Chunk),
	}
}

// clone copies maps and clips slices so appends never share backing arrays
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.seqByName {
		c.seqByName[k] = v
	}
	for k, v := range s.topics {
		c.topics[k] = v
	}
	for k, v := range s.topicByName {
		c.topicByName[k] = v
	}
	for k, v := range s.topicOrder {
		c.topicOrder[k] = v[:len(v):len(v)]
	}
	for k, v := range s.chunks {
		c.chunks[k] = v[:len(v):len(v)]
	}
	c.notifies = s.notifies[:len(s.notifies):len(s.notifies)]
	c.layers = s.layers[:len(s.layers):len(s.layers)]
	return c
}

func (s *state) createSequence(seq models.Sequence) error {
	if seq.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty sequence name")
	}
	if _, ok := s.seqByName[seq.Name()]; ok {
		return errors.Wrapf(ports.ErrConflict, "sequence '%s'", seq.Name())
	}
	s.sequences[seq.ID] = seq
	s.seqByName[seq.Name()] = seq.ID
	return nil
}

func (s *state) createTopic(t models.Topic) error {
	if t.Locator.IsZero() {
		return errors.Wrap(ports.ErrInvalidName, "empty topic name")
	}
	seq, ok := s.sequences[t.SequenceID]
	if !ok {
		return errors.Wrapf(ports.ErrNotFound, "sequence '%s'", t.SequenceID)
	}
	if seq.Name() != t.Locator.Sequence().Name() {
		return errors.Wrapf(ports.ErrInvalidName, "topic '%s' is not under sequence '%s'", t.Name(), seq.Name())
	}
	if _, ok := s.topicByName[t.Name()]; ok {
		return errors.Wrapf(ports.ErrConflict, "topic '%s'", t.Name())
	}
	s.topics[t.ID] = t
	s.topicByName[t.Name()] = t.ID
	s.topicOrder[t.SequenceID] = append(s.topicOrder[t.SequenceID], t.ID)
	return nil
}

func (s *state) appendChunk(c models.Chunk) error {
	t, ok := s.topics[c.TopicID]
	if !ok {
		return errors.Wrapf(ports.ErrNotFound, "topic '%s'", c.TopicID)
	}
	if c.Index != t.ChunksNumber {
		return errors.Wrapf(ports.ErrConflict, "chunk index %d, expected %d", c.Index, t.ChunksNumber)
	}
	s.chunks[c.TopicID] = append(s.chunks[c.TopicID], c)
	t.ChunksNumber++
	t.TotalSizeBytes += c.SizeBytes
	s.topics[t.ID] = t
	return nil
}

func (s *state) deleteTopic(id models.ResourceID) error {
	t, ok := s.topics[id]
	if !ok {
		return errors.Wrapf(ports.ErrNotFound, "topic '%s'", id)
	}
	delete(s.topics, id)
	delete(s.topicByName, t.Name())
	delete(s.chunks, id)
	order := s.topicOrder[t.SequenceID]
	kept := make([]models.ResourceID, 0, len(order))
	for _, tid := range order {
		if tid != id {
			kept = append(kept, tid)
		}
	}
	s.topicOrder[t.SequenceID] = kept
	return nil
}

func (s *state) deleteSequence(id models.ResourceID) error {
	seq, ok := s.sequences[id]
	if !ok {
		return errors.Wrapf(ports.ErrNotFound, "sequence '%s'", id)
	}
	for _, tid := range s.topicOrder[id] {
		if t, ok := s.topics[tid]; ok {
			delete(s.topicByName, t.Name())
		}
		delete(s.topics, tid)
		delete(s.chunks, tid)
	}
	delete(s.topicOrder, id)
	delete(s.sequences, id)
	delete(s.seqByName, seq.Name())
	return nil
}

func (s *state) createLayer(l models.Layer) error {
	if l.Name == "" {
		return errors.Wrap(ports.ErrInvalidName, "empty layer name")
	}
	for _, existing := range s.layers {
		if existing.Name == l.Name {
			return errors.Wrapf(ports.ErrConflict, "layer '%s'", l.Name)
		}
	}
	s.layers = append(s.layers, l)
	return nil
}

// MemDB in-memory database
type MemDB struct {
	mu    sync.RWMutex
	state *state
}

// NewMemDB creates a new in-memory database
func NewMemDB() *MemDB {
	return &MemDB{state: newState()}
}

// snapshot returns the current committed state, callers must not mutate it
func (db *MemDB) snapshot() *state {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state
}

// apply replays operations on a copy of the committed state and swaps it in
func (db *MemDB) apply(ops []func(*state) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	next := db.state.clone()
	for _, op := range ops {
		if err := op(next); err != nil {
			return err
		}
	}
	db.state = next
	return nil
}
