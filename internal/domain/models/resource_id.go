package models

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ResourceID is the immutable identifier assigned to a sequence or a topic at creation
type ResourceID struct {
	uuid.UUID
}

// NewResourceID generates a fresh random identifier
func NewResourceID() ResourceID {
	return ResourceID{UUID: uuid.New()}
}

// ErrInvalidResourceID is returned for keys that can never be assigned
var ErrInvalidResourceID = errors.New("invalid resource key")

// ParseResourceID parses the canonical string form of an identifier.
// The nil and max uuids are rejected.
func ParseResourceID(s string) (ResourceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ResourceID{}, errors.Wrapf(ErrInvalidResourceID, "'%s': %v", s, err)
	}
	if u == uuid.Nil || u == uuid.Max {
		return ResourceID{}, errors.Wrapf(ErrInvalidResourceID, "'%s' is reserved", s)
	}
	return ResourceID{UUID: u}, nil
}

// IsZero reports whether the identifier was never assigned
func (id ResourceID) IsZero() bool {
	return id.UUID == uuid.Nil
}
