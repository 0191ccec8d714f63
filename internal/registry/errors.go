package registry

import "github.com/rishad7060/tillagent/internal/model"

// Close rejection codes. Each precondition is a hard gate with its own code:
// "something went wrong" is not an acceptable answer when cash is counted.
const (
	CodePendingRefunds     = "PENDING_REFUNDS_EXIST"
	CodePendingSyncOffline = "PENDING_SYNC_OFFLINE"
	CodeSyncFailed         = "SYNC_FAILED"
	CodeInvalidActualCash  = "INVALID_ACTUAL_CASH"
	CodeNotesRequired      = "NOTES_REQUIRED"
	CodeRegistryNotOpen    = "REGISTRY_NOT_OPEN"
	CodeOffline            = "OFFLINE"
)

// CloseError is the typed rejection of a close attempt. It is fatal to that
// specific attempt only — nothing is retried silently.
type CloseError struct {
	Code    string
	Detail  string
	Refunds []model.RefundSummary
	Failed  int // unsynced items left behind by the pre-close sync
}

func (e *CloseError) Error() string { return e.Detail }
