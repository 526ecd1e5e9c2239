package handler

import "github.com/erp/ledger/internal/interfaces/http/dto"

// The types below only describe response shapes for the OpenAPI docs.
// Handlers write dto.Response directly.

// APIResponse is the success envelope with T as data
type APIResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    T         `json:"data,omitempty"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool          `json:"success" example:"false"`
	Error   dto.ErrorInfo `json:"error"`
}

// RetryCount reports how many dead letters were requeued
type RetryCount struct {
	Count int64 `json:"count" example:"3"`
}
