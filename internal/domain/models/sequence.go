package models

import (
	"encoding/json"
	"time"
)

// Sequence is a named container of topics recorded together
type Sequence struct {
	ID           ResourceID
	Locator      SequenceLocator
	UserMetadata json.RawMessage
	CreatedAt    time.Time
}

// NewSequence creates a sequence with a fresh identifier
func NewSequence(locator SequenceLocator, metadata json.RawMessage) Sequence {
	return Sequence{
		ID:           NewResourceID(),
		Locator:      locator,
		UserMetadata: NormalizeMetadata(metadata),
		CreatedAt:    time.Now().UTC(),
	}
}

// Name returns the sequence name
func (s Sequence) Name() string {
	return s.Locator.Name()
}

// MetadataSize is the size of the sequence's own system files
func (s Sequence) MetadataSize() int64 {
	return int64(len(s.UserMetadata))
}

// SequenceSystemInfo is a read-only snapshot of sequence accounting
type SequenceSystemInfo struct {
	// TotalSizeBytes includes every topic and the sequence system files
	TotalSizeBytes int64
	IsLocked       bool
	CreatedAt      time.Time
}

// NormalizeMetadata replaces an absent document with an empty JSON object
func NormalizeMetadata(m json.RawMessage) json.RawMessage {
	if len(m) == 0 || string(m) == "null" {
		return json.RawMessage("{}")
	}
	return m
}
