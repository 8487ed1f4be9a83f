package ports

import "errors"

// Standard domain errors. Implementations wrap them with context and callers
// match them with errors.Is.
var (
	// ErrNotFound is returned when the requested entity is not found
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned when an entity with the same name already exists
	ErrConflict = errors.New("entity already exists")
	// ErrInvalidName is returned for empty or malformed resource names
	ErrInvalidName = errors.New("invalid resource name")
	// ErrInvalidInput is returned for semantically invalid arguments
	ErrInvalidInput = errors.New("invalid input")
	// ErrLocked is returned when a resource is held by another writer
	ErrLocked = errors.New("resource is locked")
	// ErrAlreadyLocked is returned when acquiring a held lock
	ErrAlreadyLocked = errors.New("resource is already locked")
	// ErrNotHolder is returned when releasing a lock owned by someone else
	ErrNotHolder = errors.New("lock is held by another holder")
	// ErrNotLocked is returned when releasing a lock nobody holds
	ErrNotLocked = errors.New("resource is not locked")
	// ErrUnknownAction is returned for actions missing from the catalog
	ErrUnknownAction = errors.New("unknown action")
	// ErrMalformedBody is returned when an action body does not match its schema
	ErrMalformedBody = errors.New("malformed action body")
	// ErrUnimplemented is returned for operations the server does not provide
	ErrUnimplemented = errors.New("not implemented")
	// ErrRateLimited is returned when a caller exceeds the action rate
	ErrRateLimited = errors.New("rate limit exceeded")
)
