package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context. The HTTP layer maps them to status codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidState     = "INVALID_STATE"
	CodeCurrencyMismatch = "CURRENCY_MISMATCH"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeConflict         = "CONCURRENCY_CONFLICT"
	CodeDependency       = "DEPENDENCY_FAILURE"
	CodeDivisionByZero   = "DIVISION_BY_ZERO"
)

// ErrorKind classifies a DomainError so callers can decide whether to retry.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindState
	KindCurrencyMismatch
	KindNotFound
	KindConflict
	KindDependency
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"-"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// WithCode narrows the error code while keeping its kind
func (e *DomainError) WithCode(code string) *DomainError {
	e.Code = code
	return e
}

// Unwrap exposes the underlying cause for dependency failures
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches two domain errors by code, so sentinel comparisons survive message formatting
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// NewValidationError reports malformed input. Never retried.
func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...), Kind: KindValidation}
}

// NewStateError reports an illegal state transition.
func NewStateError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...), Kind: KindState}
}

// NewCurrencyMismatchError reports arithmetic or assignment across currencies.
func NewCurrencyMismatchError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeCurrencyMismatch, Message: fmt.Sprintf(format, args...), Kind: KindCurrencyMismatch}
}

// NewNotFoundError reports an unknown id referenced by the caller.
func NewNotFoundError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Kind: KindNotFound}
}

// NewConflictError reports a concurrent modification of the same aggregate.
// The caller should reload and retry the whole operation.
func NewConflictError(format string, args ...any) *DomainError {
	return &DomainError{Code: CodeConflict, Message: fmt.Sprintf(format, args...), Kind: KindConflict}
}

// NewDependencyError wraps a persistence or transport failure.
func NewDependencyError(cause error, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    CodeDependency,
		Message: fmt.Sprintf(format, args...),
		Kind:    KindDependency,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrDivisionByZero      = NewDomainError(CodeDivisionByZero, "cannot divide money by zero")
)

func kindForCode(code string) ErrorKind {
	switch code {
	case CodeValidation, "INVALID_INPUT":
		return KindValidation
	case CodeInvalidState:
		return KindState
	case CodeCurrencyMismatch:
		return KindCurrencyMismatch
	case CodeNotFound:
		return KindNotFound
	case CodeConflict:
		return KindConflict
	case CodeDependency:
		return KindDependency
	default:
		return KindUnknown
	}
}

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool { return KindOf(err) == KindValidation }

// IsStateError reports whether err is a StateError
func IsStateError(err error) bool { return KindOf(err) == KindState }

// IsCurrencyMismatchError reports whether err is a CurrencyMismatchError
func IsCurrencyMismatchError(err error) bool { return KindOf(err) == KindCurrencyMismatch }

// IsNotFoundError reports whether err is a NotFoundError
func IsNotFoundError(err error) bool { return KindOf(err) == KindNotFound }

// IsConflictError reports whether err is a ConflictError
func IsConflictError(err error) bool { return KindOf(err) == KindConflict }

// IsDependencyError reports whether err is a DependencyError
func IsDependencyError(err error) bool { return KindOf(err) == KindDependency }
