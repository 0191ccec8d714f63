package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rishad7060/tillagent/internal/model"
)

// ErrNoOpenSession means the back office answered definitively: there is no
// open registry session. This is the only answer that may clear an
// already-known session on the agent — a transport error never does.
var ErrNoOpenSession = errors.New("no open registry session")

// ErrSessionAlreadyOpen is returned by OpenSession when a global open session
// exists. The drawer is shared: the caller must attach to the existing
// session rather than open a second one.
var ErrSessionAlreadyOpen = errors.New("a registry session is already open")

// PendingRefundsError is the structured close rejection the back office sends
// when unresolved refund requests reference the session being closed.
type PendingRefundsError struct {
	Refunds []model.RefundSummary
}

func (e *PendingRefundsError) Error() string {
	return fmt.Sprintf("%d pending refund(s) reference this session", len(e.Refunds))
}

// RequestError carries the HTTP status of a rejected request so the sync
// manager can classify it.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// IsPermanent reports whether err is a validation-class rejection that no
// retry will fix. Transport failures and 5xx are transient; 408 and 429 are
// the server asking for a retry, so they stay transient too. A permanent
// failure still never removes the operation from the outbox — it is flagged
// for a human instead.
func IsPermanent(err error) bool {
	var re *RequestError
	if !errors.As(err, &re) {
		return false
	}
	switch re.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return re.StatusCode >= 400 && re.StatusCode < 500
}

// IsUnauthorized reports the session-expired signal from the back office.
func IsUnauthorized(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusUnauthorized
}
