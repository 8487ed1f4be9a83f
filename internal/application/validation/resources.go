// Package validation checks resource creation requests before they reach a repository.
package validation

import (
	"bytes"
	"encoding/json"

	"mosaicod/internal/domain/models"
)

// maxTagLength bounds format and ontology tags
const maxTagLength = 256

// SequenceCreate is a parsed sequence creation request
type SequenceCreate struct {
	Locator  models.SequenceLocator
	Metadata json.RawMessage
}

// TopicCreate is a parsed topic creation request
type TopicCreate struct {
	Locator             models.TopicLocator
	SerializationFormat string
	OntologyTag         string
	Metadata            json.RawMessage
}

// ValidateSequenceCreate parses the name and checks the metadata document
func ValidateSequenceCreate(name string, metadata json.RawMessage) (SequenceCreate, error) {
	loc, err := models.NewSequenceLocator(name)
	if err != nil {
		return SequenceCreate{}, NewNameError("name", err.Error())
	}
	if err := ValidateMetadata(metadata); err != nil {
		return SequenceCreate{}, err
	}
	return SequenceCreate{Locator: loc, Metadata: models.NormalizeMetadata(metadata)}, nil
}

// ValidateTopicCreate parses the topic name and checks it lives under seq
func ValidateTopicCreate(seq models.SequenceLocator, name, format, ontology string, metadata json.RawMessage) (TopicCreate, error) {
	loc, err := models.NewTopicLocator(name)
	if err != nil {
		// a bare topic path is accepted and placed under the sequence
		loc, err = models.NewTopicLocatorUnder(seq, name)
		if err != nil {
			return TopicCreate{}, NewNameError("name", err.Error())
		}
	}
	if loc.Sequence().Name() != seq.Name() {
		return TopicCreate{}, NewNameError("name",
			"topic '"+loc.Name()+"' is not under sequence '"+seq.Name()+"'")
	}
	if len(format) > maxTagLength {
		return TopicCreate{}, NewValidationError("serialization_format", "too long")
	}
	if len(ontology) > maxTagLength {
		return TopicCreate{}, NewValidationError("ontology_tag", "too long")
	}
	if err := ValidateMetadata(metadata); err != nil {
		return TopicCreate{}, err
	}
	return TopicCreate{
		Locator:             loc,
		SerializationFormat: format,
		OntologyTag:         ontology,
		Metadata:            models.NormalizeMetadata(metadata),
	}, nil
}

// ValidateMetadata accepts an absent document or a JSON object
func ValidateMetadata(metadata json.RawMessage) error {
	trimmed := bytes.TrimSpace(metadata)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return NewValidationError("user_metadata", "must be a JSON object")
	}
	return nil
}
