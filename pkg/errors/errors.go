// Package errors provides structured error types for detour.
//
// This package defines error codes and types that enable:
//   - Per-item outcomes in a routing transaction
//   - Machine-readable error codes for the CLI and the HTTP API
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The routing engine reports three kinds of failure:
//   - CONFIGURATION: a mutation is malformed or inconsistent (degenerate
//     rectangle, containment cycle, unknown routing discipline)
//   - RESOLUTION: a connector end cannot be resolved to a point (missing
//     shape or pin class, exclusive pin already taken, no route inside the
//     enclosing container)
//   - UNROUTABLE: both ends resolve but no path connects them
//
// The remaining codes are used by the surrounding tooling.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "shape %q: degenerate rectangle", id)
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // Handle rejected mutation
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, origErr, "decode scene %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Routing errors
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeResolution    Code = "RESOLUTION"
	ErrCodeUnroutable    Code = "UNROUTABLE"

	// Object table errors
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeDuplicateID Code = "DUPLICATE_ID"

	// Input errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Session errors
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}
