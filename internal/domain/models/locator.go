package models

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// LocatorSeparator separates the segments of a resource locator
const LocatorSeparator = "/"

// ErrInvalidLocator is returned when a locator cannot be parsed
var ErrInvalidLocator = errors.New("invalid resource locator")

// SequenceLocator locates a sequence: "/<sequence_name>"
type SequenceLocator struct {
	name string
}

// NewSequenceLocator parses a sequence locator, the leading separator is optional
func NewSequenceLocator(raw string) (SequenceLocator, error) {
	segments, err := splitLocator(raw)
	if err != nil {
		return SequenceLocator{}, err
	}
	if len(segments) != 1 {
		return SequenceLocator{}, errors.Wrapf(ErrInvalidLocator, "'%s' is not a sequence locator", raw)
	}
	return SequenceLocator{name: segments[0]}, nil
}

// Name returns the locator without the leading separator
func (l SequenceLocator) Name() string {
	return l.name
}

// String returns the absolute form of the locator
func (l SequenceLocator) String() string {
	return LocatorSeparator + l.name
}

// IsZero reports whether the locator is empty
func (l SequenceLocator) IsZero() bool {
	return l.name == ""
}

// TopicLocator locates a topic: "/<sequence_name>/<topic_path...>".
// The attached timestamp range qualifies a query and is not part of the name.
type TopicLocator struct {
	sequence string
	path     string

	// Range restricts the topic to a time window, nil means the whole topic
	Range *TimestampRange
}

// NewTopicLocator parses a topic locator, the leading separator is optional
func NewTopicLocator(raw string) (TopicLocator, error) {
	segments, err := splitLocator(raw)
	if err != nil {
		return TopicLocator{}, err
	}
	if len(segments) < 2 {
		return TopicLocator{}, errors.Wrapf(ErrInvalidLocator, "'%s' is not a topic locator", raw)
	}
	return TopicLocator{
		sequence: segments[0],
		path:     strings.Join(segments[1:], LocatorSeparator),
	}, nil
}

// NewTopicLocatorUnder builds the locator of a topic path inside a sequence
func NewTopicLocatorUnder(seq SequenceLocator, topicPath string) (TopicLocator, error) {
	return NewTopicLocator(seq.Name() + LocatorSeparator + topicPath)
}

// WithRange returns a copy of the locator qualified by the given range
func (l TopicLocator) WithRange(r TimestampRange) TopicLocator {
	l.Range = &r
	return l
}

// WithoutRange returns a copy of the locator without range qualification
func (l TopicLocator) WithoutRange() TopicLocator {
	l.Range = nil
	return l
}

// Name returns the locator without the leading separator
func (l TopicLocator) Name() string {
	return l.sequence + LocatorSeparator + l.path
}

// String returns the absolute form of the locator
func (l TopicLocator) String() string {
	return LocatorSeparator + l.Name()
}

// Path returns the topic path relative to its sequence
func (l TopicLocator) Path() string {
	return l.path
}

// Sequence returns the locator of the owning sequence
func (l TopicLocator) Sequence() SequenceLocator {
	return SequenceLocator{name: l.sequence}
}

// IsZero reports whether the locator is empty
func (l TopicLocator) IsZero() bool {
	return l.sequence == "" && l.path == ""
}

// Equal compares names and range qualification
func (l TopicLocator) Equal(o TopicLocator) bool {
	if l.Name() != o.Name() {
		return false
	}
	switch {
	case l.Range == nil && o.Range == nil:
		return true
	case l.Range == nil || o.Range == nil:
		return false
	default:
		return *l.Range == *o.Range
	}
}

func splitLocator(raw string) ([]string, error) {
	trimmed := strings.TrimPrefix(raw, LocatorSeparator)
	if trimmed == "" {
		return nil, errors.Wrap(ErrInvalidLocator, "empty locator")
	}
	segments := strings.Split(trimmed, LocatorSeparator)
	for _, s := range segments {
		if err := validateSegment(s); err != nil {
			return nil, errors.Wrapf(err, "locator '%s'", raw)
		}
	}
	return segments, nil
}

func validateSegment(s string) error {
	if s == "" {
		return errors.Wrap(ErrInvalidLocator, "empty segment")
	}
	if s == "." || s == ".." {
		return errors.Wrapf(ErrInvalidLocator, "reserved segment '%s'", s)
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.Wrapf(ErrInvalidLocator, "segment '%s' contains whitespace or control characters", s)
		}
	}
	return nil
}
