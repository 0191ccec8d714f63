// Package sync drains the pending-operations outbox against the back office.
//
// Replay is at-least-once: an entry is removed only on confirmed success, and
// every entry carries an idempotency key so a re-send after a lost
// acknowledgement commits at most once server-side. Nothing is ever discarded
// automatically — a permanently rejected (4xx) entry is flagged for a human
// and stays in the outbox until a human deletes it.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rishad7060/tillagent/internal/alert"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/store"
)

// ItemError describes one entry that did not sync in a pass.
type ItemError struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Permanent bool   `json:"permanent"`
	Error     string `json:"error"`
}

// Result aggregates one sync pass. Success means every snapshotted entry
// reached the server: FailedItems counts everything still pending afterwards,
// transient or permanent, because a close gated on this result must not
// proceed while anything remains unsynced.
type Result struct {
	Success     bool        `json:"success"`
	SyncedItems int         `json:"syncedItems"`
	FailedItems int         `json:"failedItems"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// Manager owns the outbox drain.
type Manager struct {
	outbox   store.OutboxRepository
	client   remote.Client
	oracle   *connectivity.Oracle
	notifier *event.Notifier
	alerts   *alert.Mailer

	deviceID string
	// alertAttempts is the attempt count at which a stuck entry raises a
	// supervisor alert. It never causes removal.
	alertAttempts int

	// mu serializes passes: operations enqueued mid-pass wait for the next
	// one, which also prevents unbounded sync loops.
	mu stdsync.Mutex
}

func NewManager(
	outbox store.OutboxRepository,
	client remote.Client,
	oracle *connectivity.Oracle,
	notifier *event.Notifier,
	alerts *alert.Mailer,
	deviceID string,
	alertAttempts int,
) *Manager {
	if alertAttempts <= 0 {
		alertAttempts = 8
	}
	return &Manager{
		outbox:        outbox,
		client:        client,
		oracle:        oracle,
		notifier:      notifier,
		alerts:        alerts,
		deviceID:      deviceID,
		alertAttempts: alertAttempts,
	}
}

// PendingCount is the non-blocking outbox introspection.
func (m *Manager) PendingCount(ctx context.Context) (store.PendingCounts, error) {
	return m.outbox.Count(ctx)
}

// ListPending exposes the raw outbox for the review screen.
func (m *Manager) ListPending(ctx context.Context) ([]model.PendingOperation, error) {
	return m.outbox.List(ctx)
}

// RemovePending deletes one entry. This is the ONLY discard path and it is
// human-initiated; nothing in the agent calls it.
func (m *Manager) RemovePending(ctx context.Context, id string) error {
	log.Warn().Str("operation_id", id).Msg("sync: pending operation removed by operator")
	return m.outbox.Remove(ctx, id)
}

// Enqueue appends one operation to the durable outbox. The payload is stored
// verbatim; the idempotency key is minted here, once, so every future replay
// of this entry presents the same key.
func (m *Manager) Enqueue(ctx context.Context, opType string, payload interface{}) (*model.PendingOperation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sync: marshal %s payload: %w", opType, err)
	}
	op := &model.PendingOperation{
		ID:             uuid.NewString(),
		Type:           opType,
		Payload:        body,
		IdempotencyKey: uuid.NewString(),
		DeviceID:       m.deviceID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.outbox.Enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("sync: enqueue: %w", err)
	}
	m.notifier.Publish(event.OperationQueued, map[string]interface{}{
		"id": op.ID, "type": op.Type,
	})
	return op, nil
}

// SyncAll replays every pending operation, ignoring per-entry backoff. It
// snapshots the outbox at call time; entries added mid-pass are picked up by
// a later pass. It never returns an error for individual item failures —
// only for catastrophic conditions (outbox unreadable). Once started it runs
// its snapshot to completion; there is no user-facing cancellation, because
// stopping half-way would leave the caller unable to reason about totals.
func (m *Manager) SyncAll(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.outbox.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: outbox unreadable: %w", err)
	}
	return m.drain(ctx, snapshot), nil
}

// syncDue is the background-loop variant: same drain, but only entries whose
// backoff window has elapsed.
func (m *Manager) syncDue(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.outbox.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("sync: outbox unreadable: %w", err)
	}
	return m.drain(ctx, snapshot), nil
}

// drain replays the snapshot in FIFO order. Order is load-bearing: a cash-out
// entered before an order must reach the server first, or the session totals
// the close trusts would be computed from a partial stream.
func (m *Manager) drain(ctx context.Context, snapshot []model.PendingOperation) *Result {
	result := &Result{}
	if len(snapshot) == 0 {
		result.Success = true
		return result
	}

	m.notifier.Publish(event.SyncStarted, map[string]interface{}{"items": len(snapshot)})
	log.Info().Int("items", len(snapshot)).Msg("sync: pass started")

	for i := range snapshot {
		op := &snapshot[i]
		err := m.client.Submit(ctx, op)
		if err == nil {
			m.oracle.ReportRequestOutcome(true)
			if rmErr := m.outbox.Remove(ctx, op.ID); rmErr != nil {
				// The server committed; the idempotency key makes the
				// inevitable re-send harmless.
				log.Error().Err(rmErr).Str("operation_id", op.ID).
					Msg("sync: confirmed remotely but not removed locally")
			}
			result.SyncedItems++
			continue
		}

		permanent := remote.IsPermanent(err)
		// A 4xx proves the network path works; only transport-class
		// failures count as connectivity evidence.
		m.oracle.ReportRequestOutcome(permanent)

		op.Attempts++
		next := time.Now().UTC().Add(computeBackoff(op.Attempts))
		if recErr := m.outbox.RecordAttempt(ctx, op.ID, op.Attempts, next, err.Error()); recErr != nil {
			log.Error().Err(recErr).Str("operation_id", op.ID).Msg("sync: attempt bookkeeping failed")
		}

		result.FailedItems++
		result.Errors = append(result.Errors, ItemError{
			ID: op.ID, Type: op.Type, Permanent: permanent, Error: err.Error(),
		})
		log.Warn().
			Str("operation_id", op.ID).
			Str("type", op.Type).
			Bool("permanent", permanent).
			Int("attempts", op.Attempts).
			Err(err).
			Msg("sync: item failed, kept pending")

		if op.Attempts == m.alertAttempts {
			errMsg := err.Error()
			op.LastError = &errMsg
			log.Error().Str("operation_id", op.ID).Int("attempts", op.Attempts).
				Msg("sync: entry exceeded alert threshold — supervisor intervention required")
			m.alerts.SyncStuckAlert(op)
		}

		if permanent {
			continue
		}
		// Transport is down — the rest of the snapshot would fail the same
		// way, and hammering preserves nothing. Count them as failed so the
		// caller cannot mistake an aborted pass for a clean one.
		for _, rest := range snapshot[i+1:] {
			result.FailedItems++
			result.Errors = append(result.Errors, ItemError{
				ID: rest.ID, Type: rest.Type, Permanent: false, Error: "skipped: backend unreachable",
			})
		}
		break
	}

	result.Success = result.FailedItems == 0
	if result.SyncedItems > 0 {
		m.notifier.Publish(event.TotalsChanged, nil)
	}
	m.notifier.Publish(event.SyncFinished, result)
	log.Info().
		Int("synced", result.SyncedItems).
		Int("failed", result.FailedItems).
		Msg("sync: pass finished")
	return result
}
