package model

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound marks a referenced Category or Request that does not exist.
// Callers must be able to tell "didn't exist" apart from "bad input".
var ErrNotFound = errors.New("record not found")

// ValidationError carries one or more input problems. It is surfaced to the
// caller synchronously and never leaves partial state behind.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// NewValidationError builds a validation error from individual problems.
func NewValidationError(problems ...string) error {
	return &ValidationError{Problems: problems}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err means the referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
