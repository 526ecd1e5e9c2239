package dto

import (
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeDependency is used when a database or broker call failed
	ErrCodeDependency = "ERR_DEPENDENCY"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	// ErrCodeValidationLength is used when a field length is invalid
	ErrCodeValidationLength = "ERR_VALIDATION_LENGTH"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeCurrencyMismatch is used when amounts in different currencies meet
	ErrCodeCurrencyMismatch = "ERR_CURRENCY_MISMATCH"
)

// Ledger error codes. These are surfaced verbatim so clients can branch on them.
const (
	ErrCodeNotBalanced          = "NOT_BALANCED"
	ErrCodeNoLineItems          = "NO_LINE_ITEMS"
	ErrCodeTooFewLineItems      = "TOO_FEW_LINE_ITEMS"
	ErrCodeAlreadyPosted        = "ALREADY_POSTED"
	ErrCodeAccountNotUsable     = "ACCOUNT_NOT_USABLE"
	ErrCodeInvalidParent        = "INVALID_PARENT"
	ErrCodeInvalidAccountNumber = "INVALID_ACCOUNT_NUMBER"
	ErrCodeHierarchyCycle       = "HIERARCHY_CYCLE"
	ErrCodeHierarchyTooDeep     = "HIERARCHY_TOO_DEEP"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:    http.StatusInternalServerError,
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeDependency: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeValidationRequired:   http.StatusBadRequest,
	ErrCodeValidationFormat:     http.StatusBadRequest,
	ErrCodeValidationRange:      http.StatusBadRequest,
	ErrCodeValidationLength:     http.StatusBadRequest,
	ErrCodeInvalidAccountNumber: http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:     http.StatusUnprocessableEntity,
	ErrCodeCurrencyMismatch: http.StatusUnprocessableEntity,
	ErrCodeNotBalanced:      http.StatusUnprocessableEntity,
	ErrCodeNoLineItems:      http.StatusUnprocessableEntity,
	ErrCodeTooFewLineItems:  http.StatusUnprocessableEntity,
	ErrCodeAlreadyPosted:    http.StatusUnprocessableEntity,
	ErrCodeAccountNotUsable: http.StatusUnprocessableEntity,
	ErrCodeInvalidParent:    http.StatusUnprocessableEntity,
	ErrCodeHierarchyCycle:   http.StatusUnprocessableEntity,
	ErrCodeHierarchyTooDeep: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// kindHTTPStatus is the fallback for domain codes missing from ErrorCodeHTTPStatus
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:       http.StatusBadRequest,
	shared.KindNotFound:         http.StatusNotFound,
	shared.KindConflict:         http.StatusConflict,
	shared.KindState:            http.StatusUnprocessableEntity,
	shared.KindCurrencyMismatch: http.StatusUnprocessableEntity,
	shared.KindDependency:       http.StatusServiceUnavailable,
}

// DomainErrorStatus resolves the response code and status for a domain error.
// A code without a mapping takes its status from the error kind.
func DomainErrorStatus(err *shared.DomainError) (string, int) {
	code := NormalizeErrorCode(err.Code)
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return code, status
	}
	if status, ok := kindHTTPStatus[err.Kind]; ok {
		return code, status
	}
	return code, http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to standardized codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"CURRENCY_MISMATCH":    ErrCodeCurrencyMismatch,
	"DEPENDENCY_FAILURE":   ErrCodeDependency,
	"DIVISION_BY_ZERO":     ErrCodeBusinessRule,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a legacy error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
