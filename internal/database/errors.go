package database

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for repository failures. Callers match with errors.Is or
// the helpers below.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
	ErrNotFound      = errors.New("not found")
)

// NotFoundError identifies an absent record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a NotFoundError for the given resource and id.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput reports whether err is a rejected-input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// ValidateStatus checks status against the allowed set for a table.
func ValidateStatus(status string, allowed []string) error {
	for _, candidate := range allowed {
		if status == candidate {
			return nil
		}
	}
	return fmt.Errorf("%w: status must be one of [%s], got %q", ErrInvalidInput, strings.Join(allowed, ", "), status)
}
