package model

import (
	"encoding/json"
	"time"
)

// Operation types accepted by the outbox. Each maps to one back-office
// endpoint (see internal/remote).
const (
	OpOrder           = "order"
	OpCashTransaction = "cash_transaction"
	OpRefund          = "refund"
)

// PendingOperation is one durable outbox entry: a request body the back
// office has not yet confirmed. Present in the outbox means pending; removal
// happens only after the server acknowledges success. There is no terminal
// "failed" state — entries that keep failing stay pending with their attempt
// bookkeeping updated, until a human removes them. A financial record is
// never discarded by code.
type PendingOperation struct {
	ID   string `gorm:"type:text;primaryKey" json:"id"`
	Type string `gorm:"type:text;not null;index" json:"type"`

	// Payload is the full request body intended for the remote endpoint,
	// stored verbatim so a replay sends exactly what the cashier recorded.
	Payload json.RawMessage `gorm:"type:blob;not null" json:"payload"`

	// IdempotencyKey lets the server deduplicate a retried operation whose
	// prior attempt committed remotely but was never acknowledged locally.
	IdempotencyKey string `gorm:"type:text;not null;uniqueIndex" json:"idempotencyKey"`

	DeviceID string `gorm:"type:text;not null" json:"deviceId"`

	// Retry bookkeeping. Attempts counts sends that did not confirm;
	// NextAttemptAt throttles the background loop (a blocking SyncAll
	// ignores it — the close flow must try everything).
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"nextAttemptAt,omitempty"`
	LastError     *string    `gorm:"type:text" json:"lastError,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// TableName implements the GORM tabler interface.
func (PendingOperation) TableName() string { return "pending_operations" }
