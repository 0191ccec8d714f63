package dto

import (
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/store"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// OpeningCash and ActualCash are pointers so that an absent field is
// distinguishable from an explicit 0: zero is a legal count, a missing one is
// not. Presence is enforced at the gate (validator's required would reject an
// explicit 0 after the decimal custom type func flattens it to a float).
type OpenRegistryRequest struct {
	OpeningCash *decimal.Decimal `json:"openingCash" validate:"omitempty,min=0"`
}

type CloseRegistryRequest struct {
	ActualCash   *decimal.Decimal `json:"actualCash"   validate:"omitempty,min=0"`
	ClosingNotes string           `json:"closingNotes"`
}

type CashTransactionRequest struct {
	TransactionType string          `json:"transactionType" validate:"required,oneof=cash_in cash_out"`
	Amount          decimal.Decimal `json:"amount"          validate:"required,gt=0"`
	Reason          string          `json:"reason"          validate:"required,min=3"`
	Reference       *string         `json:"reference"`
	Notes           *string         `json:"notes"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	PIN      string `json:"pin"      validate:"required,min=4"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// RegistrySummaryResponse presents the session with its expected cash always
// recomputed from components, plus the sync state the close gate depends on.
type RegistrySummaryResponse struct {
	Session      *model.RegistrySession `json:"session"`
	ExpectedCash *decimal.Decimal       `json:"expectedCash,omitempty"`
	PendingSync  store.PendingCounts    `json:"pendingSync"`
	// Source marks whether the snapshot came from the server or, degraded,
	// from the on-device cache.
	Source string `json:"source"` // server | cache
	Online bool   `json:"online"`
}

// QueuedResponse acknowledges a write-through-outbox operation.
type QueuedResponse struct {
	OperationID string `json:"operationId"`
	Type        string `json:"type"`
	Synced      bool   `json:"synced"`
	Pending     int64  `json:"pending"`
}
