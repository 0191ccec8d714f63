package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cash transaction types. Entries are append-only: a mistake is corrected by
// an inverse entry, never by mutating or deleting the original.
const (
	CashIn  = "cash_in"
	CashOut = "cash_out"
)

// CashTransaction is one ledger entry against an open registry session.
// It contributes additively (cash_in) or subtractively (cash_out) to the
// session's running cash totals, which are aggregated server-side.
type CashTransaction struct {
	ID                int64           `json:"id,omitempty"`
	RegistrySessionID int64           `json:"registrySessionId"`
	CashierID         string          `json:"cashierId"`
	TransactionType   string          `json:"transactionType"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason"`
	Reference         *string         `json:"reference,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt,omitempty"`
}
