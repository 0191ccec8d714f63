// Package apierror provides the standardized error envelope for the local UI
// API. Every 4xx/5xx response goes through this package so the till UI can
// rely on one shape, and so internal details (stack traces, store errors)
// never leak to the operator.
package apierror

import "github.com/rishad7060/tillagent/internal/model"

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Code is present on structured rejections (registry close gates) so the UI
// can branch without parsing prose.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`

	// PendingRefunds accompanies a PENDING_REFUNDS_EXIST rejection so the
	// supervisor sees exactly which refunds block the close.
	PendingRefunds []model.RefundSummary `json:"pendingRefunds,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// NewCode builds a structured rejection the UI can branch on.
func NewCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}
