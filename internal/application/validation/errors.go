package validation

import (
	"fmt"

	"mosaicod/internal/domain/ports"
)

// ValidationError represents a rejected request field
type ValidationError struct {
	Field   string
	Message string
	// Kind is the domain error the failure maps to
	Kind error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap exposes the domain error kind to errors.Is
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError creates an invalid-input error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Kind: ports.ErrInvalidInput}
}

// NewNameError creates an invalid-name error for a field
func NewNameError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Kind: ports.ErrInvalidName}
}
