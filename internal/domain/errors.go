package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the caller may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when there's a conflict (e.g., optimistic locking)
	ErrConflict = errors.New("conflict occurred")

	// ErrRecomputation is returned when a rating aggregate could not be written
	ErrRecomputation = errors.New("rating recomputation failed")

	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)

// ValidationError carries per-field messages that are safe to show to the caller.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) hold for validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RecomputationError reports a failed aggregate write for a product.
type RecomputationError struct {
	ProductID uuid.UUID
	Err       error
}

func (e *RecomputationError) Error() string {
	return fmt.Sprintf("recompute rating for product %s: %v", e.ProductID, e.Err)
}

func (e *RecomputationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRecomputation) hold.
func (e *RecomputationError) Is(target error) bool {
	return target == ErrRecomputation
}
