package models

import (
	"encoding/json"
	"time"
)

// DefaultSerializationFormat is used when a topic is created without a format tag
const DefaultSerializationFormat = "default"

// Topic is a single channel of a sequence holding ordered immutable chunks.
// It references its sequence by id only.
type Topic struct {
	ID                  ResourceID
	SequenceID          ResourceID
	Locator             TopicLocator
	SerializationFormat string
	OntologyTag         string
	UserMetadata        json.RawMessage
	CreatedAt           time.Time

	// ChunksNumber equals the number of committed chunks
	ChunksNumber int64
	// TotalSizeBytes equals the sum of committed chunk sizes
	TotalSizeBytes int64
}

// NewTopic creates a topic with a fresh identifier
func NewTopic(sequenceID ResourceID, locator TopicLocator, format, ontology string, metadata json.RawMessage) Topic {
	if format == "" {
		format = DefaultSerializationFormat
	}
	return Topic{
		ID:                  NewResourceID(),
		SequenceID:          sequenceID,
		Locator:             locator.WithoutRange(),
		SerializationFormat: format,
		OntologyTag:         ontology,
		UserMetadata:        NormalizeMetadata(metadata),
		CreatedAt:           time.Now().UTC(),
	}
}

// Name returns the full topic name, sequence prefix included
func (t Topic) Name() string {
	return t.Locator.Name()
}

// TopicSystemInfo is a read-only snapshot of topic accounting
type TopicSystemInfo struct {
	ChunksNumber   int64
	TotalSizeBytes int64
	IsLocked       bool
	CreatedAt      time.Time
}

// Chunk is a committed immutable unit of topic data
type Chunk struct {
	TopicID ResourceID
	// Index is the zero based commit position inside the topic
	Index int64
	Range TimestampRange
	// SizeBytes is the size of the stored payload
	SizeBytes  int64
	StorageKey string
	// Digest is the hex blake3 digest of the stored payload
	Digest    string
	CreatedAt time.Time
}

// ChunkRef points to a chunk selected by a read
type ChunkRef struct {
	Topic TopicLocator
	Chunk Chunk
}
