// Package errors provides structured error types for colindex.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryIndex      ErrorCategory = "INDEX"
	ErrCategorySource     ErrorCategory = "SOURCE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
)

// Error codes for each category.
const (
	// Validation codes
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeInvalidRange    = "INVALID_RANGE"
	CodeInvalidProperty = "INVALID_PROPERTY"

	// Index codes
	CodeCorruptionDetected = "CORRUPTION_DETECTED"
	CodeBuildFailed        = "BUILD_FAILED"

	// Source codes
	CodeOpenFailed  = "OPEN_FAILED"
	CodeQueryFailed = "QUERY_FAILED"
	CodeSourceBusy  = "SOURCE_BUSY"
	CodeNotFound    = "NOT_FOUND"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"
)

// IndexError is the structured error type used throughout the module.
type IndexError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *IndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *IndexError) Is(target error) bool {
	var t *IndexError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new IndexError.
func New(category ErrorCategory, code, message string) *IndexError {
	return &IndexError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new IndexError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *IndexError {
	return &IndexError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *IndexError) WithDetails(details map[string]interface{}) *IndexError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an IndexError.
func GetCategory(err error) ErrorCategory {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an IndexError.
func GetCode(err error) string {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// A locked SQLite file is the only transient failure; a corrupted index
// has to be rebuilt, not retried.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySource && code == CodeSourceBusy:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *IndexError {
	return New(ErrCategoryValidation, code, message)
}

func NewIndexError(code, message string) *IndexError {
	return New(ErrCategoryIndex, code, message)
}

func NewSourceError(code, message string, cause error) *IndexError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewConfigError(message string) *IndexError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}
