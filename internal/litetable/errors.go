package litetable

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a literal and a stored value cannot be ordered against each
	// other, such as a string column compared to a numeric literal.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Error wraps a sentinel error with additional context
type Error struct {
	err     error  // The underlying sentinel error
	context string // Additional error context
}

// Error satisfies the error interface
func (e *Error) Error() string {
	if e.context == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err.Error(), e.context)
}

// Unwrap implements the errors.Unwrap interface for compatibility with errors.Is/As
func (e *Error) Unwrap() error {
	return e.err
}

// NewError wraps a sentinel error with formatted context.
func NewError(err error, format string, args ...interface{}) *Error {
	return &Error{
		err:     err,
		context: fmt.Sprintf(format, args...),
	}
}
