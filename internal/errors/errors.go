// Package errors provides structured error types for the roomsql engine.
// All errors include a category, code and message; contract violations are
// additionally marked fatal so callers can tell them apart from adapter
// failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by engine component.
type ErrorCategory string

const (
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryParse       ErrorCategory = "PARSE"
	ErrCategoryDeclaration ErrorCategory = "DECLARATION"
	ErrCategoryBinding     ErrorCategory = "BINDING"
	ErrCategoryStorage     ErrorCategory = "STORAGE"
	ErrCategoryExecution   ErrorCategory = "EXECUTION"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Parse codes
	CodeParseError        = "PARSE_ERROR"
	CodeUnsupportedSyntax = "UNSUPPORTED_SYNTAX"

	// Declaration codes
	CodeReadFailed      = "READ_FAILED"
	CodeMalformedSource = "MALFORMED_SOURCE"

	// Binding codes
	CodeArityMismatch = "ARITY_MISMATCH"
	CodeMissingValue  = "MISSING_VALUE"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeListFailed     = "LIST_FAILED"

	// Execution codes
	CodeOpenFailed  = "OPEN_FAILED"
	CodeQueryFailed = "QUERY_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// EngineError is the structured error type used throughout the engine.
type EngineError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
	Fatal    bool
}

// Error returns a formatted error string.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EngineError.
func New(category ErrorCategory, code, message string) *EngineError {
	return &EngineError{
		Category: category,
		Code:     code,
		Message:  message,
		Fatal:    isFatal(category, code),
	}
}

// Wrap creates a new EngineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EngineError {
	return &EngineError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Fatal:    isFatal(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *EngineError) WithDetails(details map[string]interface{}) *EngineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsFatal checks whether an error (or its chain) is a contract violation.
func IsFatal(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Fatal
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCategory(err error) ErrorCategory {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// isFatal marks programming errors in the caller. Nothing in the engine is
// retried, so there is no retryable counterpart.
func isFatal(category ErrorCategory, code string) bool {
	return category == ErrCategoryBinding && code == CodeArityMismatch
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *EngineError {
	return New(ErrCategoryValidation, code, message)
}

func NewParseError(code, message string) *EngineError {
	return New(ErrCategoryParse, code, message)
}

func NewDeclarationError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryDeclaration, code, message, cause)
}

func NewBindingError(code, message string) *EngineError {
	return New(ErrCategoryBinding, code, message)
}

func NewStorageError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewExecutionError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryExecution, code, message, cause)
}

func NewInternalError(message string, cause error) *EngineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
