package models

// SequenceTopicGroup is a sequence with the topics a query selected in it
type SequenceTopicGroup struct {
	Sequence SequenceLocator
	Topics   []TopicLocator
}

// SequenceTopicGroupSet is the ordered result of a query.
// Groups keep first-seen order, topics keep first-seen order inside a group,
// and exact locator+range duplicates are collapsed.
type SequenceTopicGroupSet struct {
	groups []SequenceTopicGroup
	index  map[string]int
}

// NewSequenceTopicGroupSet creates an empty set
func NewSequenceTopicGroupSet() *SequenceTopicGroupSet {
	return &SequenceTopicGroupSet{index: make(map[string]int)}
}

// AddSequence makes sure a group exists for the sequence
func (s *SequenceTopicGroupSet) AddSequence(seq SequenceLocator) {
	s.group(seq)
}

// Add appends a topic to the group of its sequence
func (s *SequenceTopicGroupSet) Add(topic TopicLocator) {
	g := s.group(topic.Sequence())
	for _, t := range s.groups[g].Topics {
		if t.Equal(topic) {
			return
		}
	}
	s.groups[g].Topics = append(s.groups[g].Topics, topic)
}

// Groups returns the groups in first-seen order
func (s *SequenceTopicGroupSet) Groups() []SequenceTopicGroup {
	return s.groups
}

// Len returns the number of groups
func (s *SequenceTopicGroupSet) Len() int {
	return len(s.groups)
}

func (s *SequenceTopicGroupSet) group(seq SequenceLocator) int {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[seq.Name()]; ok {
		return i
	}
	s.groups = append(s.groups, SequenceTopicGroup{Sequence: seq})
	s.index[seq.Name()] = len(s.groups) - 1
	return len(s.groups) - 1
}
