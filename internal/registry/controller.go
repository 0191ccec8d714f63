// Package registry owns the cash-drawer session lifecycle on the terminal:
// NoSession → Open → Closed, with Closed terminal. The authoritative session
// lives in the back office — one shared drawer across all cashiers — so the
// controller never mutates shared totals locally; it records activity through
// the outbox and re-reads the recomputed aggregate.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/alert"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/store"
	"github.com/rishad7060/tillagent/internal/sync"
)

// Source of a session snapshot handed to the UI.
const (
	SourceServer = "server"
	SourceCache  = "cache"
)

// Controller drives the registry session state machine.
type Controller struct {
	cache    store.CacheRepository
	client   remote.Client
	oracle   *connectivity.Oracle
	syncMgr  *sync.Manager
	notifier *event.Notifier
	alerts   *alert.Mailer

	// notesThreshold: |variance| above this makes closing notes mandatory.
	notesThreshold decimal.Decimal
}

func NewController(
	cache store.CacheRepository,
	client remote.Client,
	oracle *connectivity.Oracle,
	syncMgr *sync.Manager,
	notifier *event.Notifier,
	alerts *alert.Mailer,
	notesThreshold decimal.Decimal,
) *Controller {
	return &Controller{
		cache:          cache,
		client:         client,
		oracle:         oracle,
		syncMgr:        syncMgr,
		notifier:       notifier,
		alerts:         alerts,
		notesThreshold: notesThreshold,
	}
}

// ── CheckCurrent ─────────────────────────────────────────────────────────────

// CheckCurrent fetches the single global open session. On a transport error
// it falls back to the cached snapshot and reports the degraded source — a
// transient error never destroys known session state. Only the server's
// explicit "no session found" clears it.
func (c *Controller) CheckCurrent(ctx context.Context) (*model.RegistrySession, string, error) {
	if !c.oracle.IsOnline() {
		return c.cachedSession(ctx)
	}

	session, err := c.client.GetCurrentSession(ctx)
	switch {
	case err == nil:
		c.oracle.ReportRequestOutcome(true)
		if saveErr := c.cache.SaveRegistrySession(ctx, session); saveErr != nil {
			log.Error().Err(saveErr).Msg("registry: failed to cache session snapshot")
		}
		return session, SourceServer, nil
	case errors.Is(err, remote.ErrNoOpenSession):
		// Definitive answer: no open session anywhere. Clear the snapshot.
		c.oracle.ReportRequestOutcome(true)
		if clearErr := c.cache.ClearRegistrySession(ctx); clearErr != nil {
			log.Error().Err(clearErr).Msg("registry: failed to clear session snapshot")
		}
		return nil, SourceServer, nil
	case remote.IsUnauthorized(err):
		// The back office no longer accepts our token. Force re-login; the
		// outbox is untouched.
		c.oracle.ReportRequestOutcome(true)
		if clearErr := c.cache.ClearAll(ctx); clearErr != nil {
			log.Error().Err(clearErr).Msg("registry: session-expired cache clear failed")
		}
		c.notifier.Publish(event.SessionExpired, nil)
		log.Warn().Msg("registry: back office rejected token — session expired")
		return nil, SourceServer, err
	default:
		c.oracle.ReportRequestOutcome(remote.IsPermanent(err))
		log.Warn().Err(err).Msg("registry: check-current failed, serving cached snapshot")
		return c.cachedSession(ctx)
	}
}

func (c *Controller) cachedSession(ctx context.Context) (*model.RegistrySession, string, error) {
	session, ok := c.cache.GetRegistrySession(ctx)
	if !ok {
		return nil, SourceCache, nil
	}
	return session, SourceCache, nil
}

// ── Open ─────────────────────────────────────────────────────────────────────

// Open starts a new session, or attaches to the existing one when another
// cashier already opened the shared drawer. Opening requires the server: the
// "at most one open session" invariant is a server-side uniqueness
// constraint, which cannot be enforced from a disconnected till.
func (c *Controller) Open(ctx context.Context, openedBy string, req dto.OpenRegistryRequest) (*model.RegistrySession, bool, error) {
	if req.OpeningCash == nil {
		return nil, false, errors.New("opening cash is required")
	}
	if req.OpeningCash.IsNegative() {
		return nil, false, errors.New("opening cash must be zero or positive")
	}
	if !c.oracle.CheckActualConnectivity(ctx) {
		return nil, false, errors.New("cannot open the registry while offline")
	}

	session, err := c.client.OpenSession(ctx, remote.OpenSessionRequest{
		OpenedBy:    openedBy,
		OpeningCash: *req.OpeningCash,
	})
	if errors.Is(err, remote.ErrSessionAlreadyOpen) {
		// Shared drawer: attach instead of opening a second session.
		existing, fetchErr := c.client.GetCurrentSession(ctx)
		if fetchErr != nil {
			return nil, false, fmt.Errorf("a session is already open but could not be fetched: %w", fetchErr)
		}
		if saveErr := c.cache.SaveRegistrySession(ctx, existing); saveErr != nil {
			log.Error().Err(saveErr).Msg("registry: failed to cache attached session")
		}
		log.Info().Str("session", existing.SessionNumber).Msg("registry: attached to existing session")
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if saveErr := c.cache.SaveRegistrySession(ctx, session); saveErr != nil {
		log.Error().Err(saveErr).Msg("registry: failed to cache opened session")
	}
	c.notifier.Publish(event.RegistryOpened, map[string]interface{}{
		"session":     session.SessionNumber,
		"openingCash": session.OpeningCash,
	})
	log.Info().
		Str("session", session.SessionNumber).
		Str("opening_cash", session.OpeningCash.String()).
		Str("opened_by", openedBy).
		Msg("registry: session opened")
	return session, false, nil
}

// ── Record activity ──────────────────────────────────────────────────────────

// RecordCashTransaction appends a cash in/out ledger entry through the
// outbox. The entry is durable before any network is attempted; if the
// oracle reports online, a sync pass runs immediately.
func (c *Controller) RecordCashTransaction(ctx context.Context, cashierID string, req dto.CashTransactionRequest) (*dto.QueuedResponse, error) {
	session, ok := c.cache.GetRegistrySession(ctx)
	if !ok || !session.IsOpen() {
		return nil, &CloseError{Code: CodeRegistryNotOpen, Detail: "no open registry session"}
	}
	tx := model.CashTransaction{
		RegistrySessionID: session.ID,
		CashierID:         cashierID,
		TransactionType:   req.TransactionType,
		Amount:            req.Amount,
		Reason:            req.Reason,
		Reference:         req.Reference,
		Notes:             req.Notes,
	}
	return c.recordOperation(ctx, model.OpCashTransaction, tx)
}

// RecordOrder queues an order payload. The business shape of the order is
// the back office's contract with the UI; the agent only guarantees session
// attribution, durability and idempotent replay.
func (c *Controller) RecordOrder(ctx context.Context, cashierID string, payload map[string]interface{}) (*dto.QueuedResponse, error) {
	return c.recordAttributed(ctx, model.OpOrder, cashierID, payload)
}

// RecordRefund queues a refund request payload.
func (c *Controller) RecordRefund(ctx context.Context, cashierID string, payload map[string]interface{}) (*dto.QueuedResponse, error) {
	return c.recordAttributed(ctx, model.OpRefund, cashierID, payload)
}

func (c *Controller) recordAttributed(ctx context.Context, opType, cashierID string, payload map[string]interface{}) (*dto.QueuedResponse, error) {
	session, ok := c.cache.GetRegistrySession(ctx)
	if !ok || !session.IsOpen() {
		return nil, &CloseError{Code: CodeRegistryNotOpen, Detail: "no open registry session"}
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["registrySessionId"] = session.ID
	payload["cashierId"] = cashierID
	return c.recordOperation(ctx, opType, payload)
}

// recordOperation is the write-through-outbox path shared by all activity:
// durable first, replay immediately when online, never block on the network
// while offline.
func (c *Controller) recordOperation(ctx context.Context, opType string, payload interface{}) (*dto.QueuedResponse, error) {
	op, err := c.syncMgr.Enqueue(ctx, opType, payload)
	if err != nil {
		return nil, err
	}

	synced := false
	if c.oracle.IsOnline() {
		if result, syncErr := c.syncMgr.SyncAll(ctx); syncErr == nil {
			synced = result.Success
		}
	}

	counts, _ := c.syncMgr.PendingCount(ctx)
	return &dto.QueuedResponse{
		OperationID: op.ID,
		Type:        opType,
		Synced:      synced,
		Pending:     counts.Total,
	}, nil
}

// ── Close ────────────────────────────────────────────────────────────────────

// Close finalizes the session. Preconditions run in order; each is a hard
// gate that aborts with a specific code:
//
//  1. no unresolved refund requests reference this session,
//  2. no pending offline operations remain — offline with a backlog is an
//     outright rejection; online triggers a blocking SyncAll and any
//     failedItems reject the close,
//  3. the actual cash count is a valid non-negative number,
//  4. notes are mandatory when |variance| exceeds the materiality threshold.
//
// On success the server persists status=closed with closingCash (the
// expected value), actualCash, variance and closedBy, and the cached session
// snapshot is cleared: a closed session is no longer restorable state.
func (c *Controller) Close(ctx context.Context, closedBy string, req dto.CloseRegistryRequest) (*model.RegistrySession, error) {
	session, ok := c.cache.GetRegistrySession(ctx)
	if !ok || !session.IsOpen() {
		return nil, &CloseError{Code: CodeRegistryNotOpen, Detail: "no open registry session to close"}
	}

	online := c.oracle.CheckActualConnectivity(ctx)

	// Gate 1: unresolved refunds make the drawer unverifiable — cash may
	// already have left it for a customer.
	if online {
		refunds, err := c.client.GetPendingRefunds(ctx, session.ID)
		if err != nil {
			log.Warn().Err(err).Msg("registry: pending-refund pre-check failed, deferring to close endpoint")
		} else if len(refunds) > 0 {
			return nil, c.rejectClose(&CloseError{
				Code:    CodePendingRefunds,
				Detail:  fmt.Sprintf("%d unresolved refund(s) reference this session", len(refunds)),
				Refunds: refunds,
			})
		}
	}

	// Gate 2: the drawer cannot be reconciled while operations that change
	// its totals are still local-only.
	counts, err := c.syncMgr.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: outbox unreadable: %w", err)
	}
	if counts.Total > 0 {
		if !online {
			return nil, c.rejectClose(&CloseError{
				Code:   CodePendingSyncOffline,
				Detail: fmt.Sprintf("%d operation(s) are waiting to sync and the device is offline", counts.Total),
				Failed: int(counts.Total),
			})
		}
		result, syncErr := c.syncMgr.SyncAll(ctx)
		if syncErr != nil {
			return nil, syncErr
		}
		if result.FailedItems > 0 {
			return nil, c.rejectClose(&CloseError{
				Code:   CodeSyncFailed,
				Detail: fmt.Sprintf("%d operation(s) failed to sync; the registry cannot close until they are resolved", result.FailedItems),
				Failed: result.FailedItems,
			})
		}
	}
	if !online {
		// Empty outbox but no route to the server: the close itself is a
		// server write and cannot be performed blind.
		return nil, c.rejectClose(&CloseError{
			Code:   CodeOffline,
			Detail: "the device is offline; closing requires connectivity to record the final count",
		})
	}

	// Gate 3: a close without a usable physical count is meaningless. An
	// absent count is as invalid as a negative one — closing with an implied
	// zero would record a huge phantom shortage or, worse, sail through when
	// the drawer happens to be near empty.
	if req.ActualCash == nil {
		return nil, c.rejectClose(&CloseError{
			Code:   CodeInvalidActualCash,
			Detail: "actual cash is required: count the drawer before closing",
		})
	}
	if req.ActualCash.IsNegative() {
		return nil, c.rejectClose(&CloseError{
			Code:   CodeInvalidActualCash,
			Detail: "actual cash must be a non-negative amount",
		})
	}
	actual := *req.ActualCash

	// Refresh the authoritative totals now that the outbox is drained, then
	// compute variance from components — never from a stale stored figure.
	fresh, err := c.client.GetCurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: could not refresh session totals: %w", err)
	}
	expected := fresh.ExpectedCash()
	variance := actual.Sub(expected)

	// Gate 4: material variance requires an explanation before submission.
	if variance.Abs().GreaterThan(c.notesThreshold) && req.ClosingNotes == "" {
		return nil, c.rejectClose(&CloseError{
			Code: CodeNotesRequired,
			Detail: fmt.Sprintf("variance %s exceeds %s; closing notes are required",
				variance.String(), c.notesThreshold.String()),
		})
	}

	closed, err := c.client.CloseSession(ctx, fresh.ID, remote.CloseSessionRequest{
		ClosedBy:     closedBy,
		ActualCash:   actual,
		ClosingNotes: req.ClosingNotes,
	})
	if err != nil {
		var pr *remote.PendingRefundsError
		if errors.As(err, &pr) {
			return nil, c.rejectClose(&CloseError{
				Code:    CodePendingRefunds,
				Detail:  pr.Error(),
				Refunds: pr.Refunds,
			})
		}
		return nil, err
	}

	if clearErr := c.cache.ClearRegistrySession(ctx); clearErr != nil {
		log.Error().Err(clearErr).Msg("registry: failed to clear closed session from cache")
	}

	c.notifier.Publish(event.RegistryClosed, map[string]interface{}{
		"session":  closed.SessionNumber,
		"expected": expected,
		"actual":   actual,
		"variance": variance,
	})
	log.Info().
		Str("session", closed.SessionNumber).
		Str("expected", expected.String()).
		Str("actual", actual.String()).
		Str("variance", variance.String()).
		Str("closed_by", closedBy).
		Msg("registry: session closed")

	if variance.Abs().GreaterThan(c.notesThreshold) {
		c.notifier.Publish(event.VarianceOverThreshold, map[string]interface{}{
			"session": closed.SessionNumber, "variance": variance,
		})
		c.alerts.VarianceAlert(closed, variance, req.ClosingNotes)
	}
	return closed, nil
}

func (c *Controller) rejectClose(ce *CloseError) *CloseError {
	c.notifier.Publish(event.RegistryCloseRejected, map[string]interface{}{
		"code": ce.Code, "detail": ce.Detail,
	})
	log.Warn().Str("code", ce.Code).Str("detail", ce.Detail).Msg("registry: close rejected")
	return ce
}

// ── Summary ──────────────────────────────────────────────────────────────────

// Summary assembles what the drawer screen shows: the freshest session
// snapshot available, its expected cash recomputed from components, and the
// sync state that gates closing.
func (c *Controller) Summary(ctx context.Context) (*dto.RegistrySummaryResponse, error) {
	session, source, err := c.CheckCurrent(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := c.syncMgr.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.RegistrySummaryResponse{
		Session:     session,
		PendingSync: counts,
		Source:      source,
		Online:      c.oracle.IsOnline(),
	}
	if session != nil {
		expected := session.ExpectedCash()
		resp.ExpectedCash = &expected
	}
	return resp, nil
}
