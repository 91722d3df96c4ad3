package kherrors

import (
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - invalid input data
	ErrorTypeValidation
	// DataAccess errors - document store read/write failures
	ErrorTypeDataAccess
	// Analysis errors - total analysis failure (both analyzers failed)
	ErrorTypeAnalysis
	// Timeout errors - enhanced-mode analysis exceeded its deadline
	ErrorTypeTimeout
	// External errors - external service failures (enrichment, cache)
	ErrorTypeExternal
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Error represents a structured error with a category and optional cause
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithContext adds a key-value pair to the error context
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap wraps an existing error with a category and message
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// Convenience constructors for the categories the processor distinguishes

// DataAccessError wraps a document store failure
func DataAccessError(err error, message string) *Error {
	return Wrap(err, ErrorTypeDataAccess, message)
}

// AnalysisError wraps a total analysis failure
func AnalysisError(err error, message string) *Error {
	return Wrap(err, ErrorTypeAnalysis, message)
}

// TimeoutError creates a timeout error
func TimeoutError(message string) *Error {
	return New(ErrorTypeTimeout, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...any) *Error {
	return New(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// GetType returns the category of an error, ErrorTypeInternal for foreign errors
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsDataAccess reports whether err is a document store failure
func IsDataAccess(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeDataAccess
}
