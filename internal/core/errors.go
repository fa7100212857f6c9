package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means there is no valid session for the call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFoundOrUnauthorized is returned alike for missing rows and rows
	// owned by someone else.
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidCategory = errors.New("invalid expense category")
	ErrInvalidUnit     = errors.New("invalid harvest unit")
	ErrInvalidGrade    = errors.New("invalid quality grade")
	ErrEmptyValue      = errors.New("required value is empty")
	ErrMissingParent   = errors.New("missing parent reference")
)

// ValidationError reports malformed or missing input for a single field.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
