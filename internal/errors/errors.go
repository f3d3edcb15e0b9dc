package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type. Category, severity and the retryable
// flag are derived from Code.
type Error struct {
	// Code is the unique error code (e.g., "ERR_505_INDEX_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is works against a template.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates an Error with the given code and message.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error, reusing its message.
// Wrap returns nil for a nil err.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a file error.
func IOError(message string, cause error) *Error {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode returns the error code, or "" if err is not an *Error.
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// GetCategory returns the error category, or "" if err is not an *Error.
func GetCategory(err error) Category {
	if e, ok := As(err); ok {
		return e.Category
	}
	return ""
}
