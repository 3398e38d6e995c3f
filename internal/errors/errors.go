// Package errors defines the coded errors surfaced by shotfind.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrDependency     ErrorCode = "DEPENDENCY"      // model registry, vector store or service launch
	ErrNoMatches      ErrorCode = "NO_MATCHES"      // update found nothing to index
	ErrProcessing     ErrorCode = "PROCESSING"      // a single file failed
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // bad pattern or flags
	ErrInternal       ErrorCode = "INTERNAL"
)

// ShotError is a structured error with a code and optional details.
type ShotError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *ShotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ShotError) Unwrap() error {
	return e.Err
}

// NewDependency wraps a failure of an external collaborator.
func NewDependency(what string, err error) *ShotError {
	return &ShotError{
		Code:    ErrDependency,
		Message: what,
		Details: map[string]any{"dependency": what},
		Err:     err,
	}
}

// NewNoMatches reports that the pattern selected no files.
func NewNoMatches(pattern string) *ShotError {
	return &ShotError{
		Code:    ErrNoMatches,
		Message: fmt.Sprintf("No files found that match the pattern '%s'", pattern),
		Details: map[string]any{"pattern": pattern},
	}
}

// NewProcessing wraps a failure to index one file.
func NewProcessing(path string, err error) *ShotError {
	return &ShotError{
		Code:    ErrProcessing,
		Message: fmt.Sprintf("processing %s", path),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewInvalidRequest creates an error for bad input.
func NewInvalidRequest(msg string) *ShotError {
	return &ShotError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *ShotError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ShotError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is reports whether err, or anything it wraps, is a ShotError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ShotError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
