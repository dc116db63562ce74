package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist
	// or is not visible to the calling business.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a write collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrUnauthorized is returned when an API key does not authenticate a business.
	ErrUnauthorized = errors.New("application: unauthorized")
)

// PartialWriteError reports that series materialization persisted only a
// subset of the expanded occurrence rows. Rows already written are not
// rolled back; CreatedIDs lets the caller reconcile or surface a
// degraded-success message.
type PartialWriteError struct {
	SeriesID   string
	CreatedIDs []string
	Err        error
}

// Error implements the error interface.
func (e *PartialWriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("series %s: persisted %d of the requested occurrence rows: %v", e.SeriesID, len(e.CreatedIDs), e.Err)
}

// Unwrap exposes the underlying persistence failure.
func (e *PartialWriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
