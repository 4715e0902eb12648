// Package apperr defines the error categories shared by the emotune commands.
//
// Error taxonomy
//
//	UserError    – missing or invalid user input (wrong flag, unknown split, …).
//	               The CLI prints only the message. Exit code: 1.
//
//	ErrCancelled – the user declined an interactive confirmation (publish
//	               prompt). Exit code: 0.
//
// Pipeline failures (device mismatch, workspace preconditions, hub errors) are
// typed errors owned by their packages and propagate with
// fmt.Errorf("context: %w", err) wrapping. Nothing is retried.
package apperr

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user explicitly aborts an interactive
// operation. The CLI exits 0 when it sees this error.
var ErrCancelled = errors.New("operation cancelled")

// UserError represents an error caused by invalid or missing user input.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}
