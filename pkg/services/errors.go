package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateActive is returned when the topic already has a generation
	// in flight
	ErrDuplicateActive = errors.New("topic already has an active generation")

	// ErrTopicLinked is returned when deleting a topic that still references
	// a generation
	ErrTopicLinked = errors.New("topic is linked to a generation")

	// ErrTopicNotSuggested is returned when deleting a topic that left the
	// suggestion pool
	ErrTopicNotSuggested = errors.New("topic is not in the suggestion pool")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
