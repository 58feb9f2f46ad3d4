// Package apperr defines the error taxonomy shared by the engine's components.
// Callers classify failures with errors.Is against the four sentinels; the HTTP
// layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced user, question or choice does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input is malformed or references mismatched entities.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a uniqueness rule was violated, e.g. an email already claimed.
	ErrConflict = errors.New("conflict")
	// ErrStore means the underlying persistence layer failed.
	ErrStore = errors.New("storage failure")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Store classifies err as a persistence failure, keeping it in the chain.
func Store(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
