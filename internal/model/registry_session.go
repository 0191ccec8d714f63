package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session status values. Closing is a one-way transition: a closed session is
// never reopened, a new one is opened instead.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// RegistrySession is one shift-long record of the shared physical cash drawer.
// The authoritative copy lives in the back office; the agent only ever holds
// a snapshot of it in the session cache. All accumulator fields are maintained
// server-side — the agent never performs a local read-modify-write on them.
type RegistrySession struct {
	ID            int64  `json:"id"`
	SessionNumber string `json:"sessionNumber"`
	SessionDate   string `json:"sessionDate"` // calendar day of the shift, YYYY-MM-DD
	Status        string `json:"status"`

	OpeningCash  decimal.Decimal `json:"openingCash"`
	CashPayments decimal.Decimal `json:"cashPayments"`
	CashIn       decimal.Decimal `json:"cashIn"`
	CashOut      decimal.Decimal `json:"cashOut"`
	CashRefunds  decimal.Decimal `json:"cashRefunds"`

	// Set on close. ClosingCash is the expected value computed at close time;
	// ActualCash is the operator's physical count.
	ClosingCash  *decimal.Decimal `json:"closingCash,omitempty"`
	ActualCash   *decimal.Decimal `json:"actualCash,omitempty"`
	Variance     *decimal.Decimal `json:"variance,omitempty"`
	ClosingNotes *string          `json:"closingNotes,omitempty"`

	OpenedBy     string     `json:"openedBy"`
	ClosedBy     *string    `json:"closedBy,omitempty"`
	CashierCount int        `json:"cashierCount"`
	OpenedAt     time.Time  `json:"openedAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// IsOpen reports whether the session still accepts activity.
func (s *RegistrySession) IsOpen() bool {
	return s != nil && s.Status == SessionOpen
}

// ExpectedCash recomputes the drawer's expected content from components.
// Never trust a stored closing figure while the session is open: a
// late-arriving synced transaction can change any accumulator, so display
// values are always derived at read time.
//
//	expected = openingCash + cashPayments + cashIn − cashOut − cashRefunds
func (s *RegistrySession) ExpectedCash() decimal.Decimal {
	return s.OpeningCash.
		Add(s.CashPayments).
		Add(s.CashIn).
		Sub(s.CashOut).
		Sub(s.CashRefunds)
}

// VarianceAgainst returns actual − expected. Positive means cash over,
// negative means cash short, zero is a perfect match.
func (s *RegistrySession) VarianceAgainst(actual decimal.Decimal) decimal.Decimal {
	return actual.Sub(s.ExpectedCash())
}

// RefundSummary identifies an unresolved refund request blocking a close.
type RefundSummary struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
