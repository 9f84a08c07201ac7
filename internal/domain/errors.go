// Package domain holds the error vocabulary shared by the core, the services
// and the adapters.
package domain

import "errors"

var (
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidPhase          = errors.New("invalid phase")
	ErrMissingCreationRecord = errors.New("job has no creation record")
	ErrDuplicateCreation     = errors.New("job already has a creation record")
	ErrOrderingViolation     = errors.New("timestamp ordering violation")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidWindow         = errors.New("invalid date window")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
