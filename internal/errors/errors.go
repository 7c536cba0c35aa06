// Package errors provides structured error types for meetEasy services.
// All errors include a category, code, message, and retryable flag so that
// adapters, handlers and the search aggregator can classify failures the
// same way.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryUpstream   ErrorCategory = "UPSTREAM"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryPayment    ErrorCategory = "PAYMENT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeEmptyQuery      = "EMPTY_QUERY"
	CodeInvalidSize     = "INVALID_SIZE"
	CodeInvalidEvent    = "INVALID_EVENT"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeUnauthenticated = "UNAUTHENTICATED"

	// Upstream (ticketing API, email, calendar) codes
	CodeRateLimited    = "RATE_LIMITED"
	CodeUpstreamFailed = "UPSTREAM_FAILED"
	CodeCircuitOpen    = "CIRCUIT_OPEN"
	CodeBadPayload     = "BAD_PAYLOAD"

	// Store codes
	CodeNotFound         = "NOT_FOUND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeForbidden        = "FORBIDDEN"

	// Storage codes
	CodeUploadFailed = "UPLOAD_FAILED"

	// Payment codes
	CodeIntentFailed      = "INTENT_FAILED"
	CodePaymentIncomplete = "PAYMENT_INCOMPLETE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Only rate limiting is retried; every other upstream failure degrades at once.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryUpstream && code == CodeRateLimited:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *Error {
	return New(ErrCategoryValidation, code, message)
}

func NewUpstreamError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryUpstream, code, message, cause)
}

func NewStoreError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewStorageError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewPaymentError(message string, cause error) *Error {
	return Wrap(ErrCategoryPayment, CodeIntentFailed, message, cause)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
