// Package apperrors defines the error taxonomy of the ingestion pipeline.
// Each pipeline step failure is classified with an ErrorCode so the
// orchestrator can map it onto a terminal outcome without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a pipeline failure.
type ErrorCode int

const (
	// ErrCodeValidation: the file failed the syntactic check for its claimed
	// type (or carries an unknown extension).
	ErrCodeValidation ErrorCode = iota + 1
	// ErrCodeExtraction: the file validated but structural metadata could not
	// be extracted.
	ErrCodeExtraction
	// ErrCodeDuplicate: an already validated record exists with the same
	// content hash.
	ErrCodeDuplicate
	// ErrCodePersistence: the storage gateway rejected or could not complete
	// a write.
	ErrCodePersistence
	// ErrCodeRelocation: a filesystem move or copy failed.
	ErrCodeRelocation
	// ErrCodeConfiguration: invalid startup configuration. Fatal before the
	// first cycle, never raised inside one.
	ErrCodeConfiguration
)

// String returns the snake_case name used in logs.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeValidation:
		return "validation_error"
	case ErrCodeExtraction:
		return "extraction_error"
	case ErrCodeDuplicate:
		return "duplicate_error"
	case ErrCodePersistence:
		return "persistence_error"
	case ErrCodeRelocation:
		return "relocation_error"
	case ErrCodeConfiguration:
		return "configuration_error"
	default:
		return "unknown_error"
	}
}

// AppError carries a classified pipeline error with its underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a classified error without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the classification of err, or 0 when err carries none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

// Is reports whether err is classified with code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
