// Package remote is the agent's client for the back-office REST API. It is
// the only place that knows endpoint paths and wire shapes; everything above
// it works with domain models and typed errors.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/model"
)

// Client is the back-office surface the agent consumes. Tests substitute a
// recording fake; production uses the resty implementation below.
type Client interface {
	// Ping is the liveness probe: a cheap round-trip that must answer within
	// the caller's deadline. Any failure means "not really online".
	Ping(ctx context.Context) error

	Login(ctx context.Context, username, pin string) (*LoginResult, error)

	// GetCurrentSession returns the single global open session, or
	// ErrNoOpenSession when the server definitively reports none.
	GetCurrentSession(ctx context.Context) (*model.RegistrySession, error)
	OpenSession(ctx context.Context, req OpenSessionRequest) (*model.RegistrySession, error)
	CloseSession(ctx context.Context, id int64, req CloseSessionRequest) (*model.RegistrySession, error)
	GetPendingRefunds(ctx context.Context, sessionID int64) ([]model.RefundSummary, error)

	// Submit replays one outbox entry against its endpoint, attaching the
	// entry's idempotency key so a re-send after a lost acknowledgement
	// commits at most once.
	Submit(ctx context.Context, op *model.PendingOperation) error
}

// LoginResult is the back office's answer to a successful login.
type LoginResult struct {
	User        model.User        `json:"user"`
	Permissions model.Permissions `json:"permissions"`
	Token       string            `json:"token"`
}

// OpenSessionRequest creates a new registry session.
type OpenSessionRequest struct {
	OpenedBy    string          `json:"openedBy"`
	OpeningCash decimal.Decimal `json:"openingCash"`
}

// CloseSessionRequest finalizes a session.
type CloseSessionRequest struct {
	ClosedBy     string          `json:"closedBy"`
	ActualCash   decimal.Decimal `json:"actualCash"`
	ClosingNotes string          `json:"closingNotes,omitempty"`
}

// TokenSource yields the bearer token for back-office calls — in production,
// the cached operator token. Returning "" sends the request unauthenticated
// (login, ping).
type TokenSource func() string

type client struct {
	http     *resty.Client
	deviceID string
	token    TokenSource
}

// endpointFor maps an outbox operation type to its back-office endpoint.
// Order-creation and refund endpoints share the cash-transaction contract:
// JSON body, idempotency key, 2xx on commit.
func endpointFor(opType string) (string, error) {
	switch opType {
	case model.OpOrder:
		return "/api/orders", nil
	case model.OpCashTransaction:
		return "/api/cash-transactions", nil
	case model.OpRefund:
		return "/api/refunds", nil
	default:
		return "", fmt.Errorf("remote: unknown operation type %q", opType)
	}
}

// New builds the production client. timeout bounds every request; the probe
// additionally passes its own, shorter context deadline.
func New(baseURL, deviceID string, timeout time.Duration, token TokenSource) Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Device-ID", deviceID)
	return &client{http: rc, deviceID: deviceID, token: token}
}

func (c *client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if tok := c.token(); tok != "" {
		req.SetAuthToken(tok)
	}
	return req
}

func (c *client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/ping")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &RequestError{StatusCode: resp.StatusCode()}
	}
	return nil
}

func (c *client) Login(ctx context.Context, username, pin string) (*LoginResult, error) {
	var result LoginResult
	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]string{"username": username, "pin": pin}).
		SetResult(&result).
		Post("/api/auth/login")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, requestError(resp)
	}
	return &result, nil
}

func (c *client) GetCurrentSession(ctx context.Context) (*model.RegistrySession, error) {
	var session model.RegistrySession
	resp, err := c.request(ctx).
		SetResult(&session).
		Get("/api/registry-sessions/current")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNoOpenSession
	}
	if resp.IsError() {
		return nil, requestError(resp)
	}
	return &session, nil
}

func (c *client) OpenSession(ctx context.Context, req OpenSessionRequest) (*model.RegistrySession, error) {
	var session model.RegistrySession
	resp, err := c.request(ctx).
		SetBody(req).
		SetResult(&session).
		Post("/api/registry-sessions")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusConflict {
		return nil, ErrSessionAlreadyOpen
	}
	if resp.IsError() {
		return nil, requestError(resp)
	}
	return &session, nil
}

// closeRejection is the structured body of a refused close.
type closeRejection struct {
	Code           string                `json:"code"`
	Detail         string                `json:"detail"`
	PendingRefunds []model.RefundSummary `json:"pendingRefunds"`
}

func (c *client) CloseSession(ctx context.Context, id int64, req CloseSessionRequest) (*model.RegistrySession, error) {
	var session model.RegistrySession
	resp, err := c.request(ctx).
		SetQueryParam("id", fmt.Sprintf("%d", id)).
		SetBody(req).
		SetResult(&session).
		Put("/api/registry-sessions")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		var rejection closeRejection
		if jsonErr := json.Unmarshal(resp.Body(), &rejection); jsonErr == nil &&
			rejection.Code == "PENDING_REFUNDS_EXIST" {
			return nil, &PendingRefundsError{Refunds: rejection.PendingRefunds}
		}
		return nil, requestError(resp)
	}
	return &session, nil
}

func (c *client) GetPendingRefunds(ctx context.Context, sessionID int64) ([]model.RefundSummary, error) {
	var refunds []model.RefundSummary
	resp, err := c.request(ctx).
		SetQueryParam("registrySessionId", fmt.Sprintf("%d", sessionID)).
		SetQueryParam("status", "pending").
		SetResult(&refunds).
		Get("/api/refunds")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, requestError(resp)
	}
	return refunds, nil
}

func (c *client) Submit(ctx context.Context, op *model.PendingOperation) error {
	endpoint, err := endpointFor(op.Type)
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetHeader("X-Idempotency-Key", op.IdempotencyKey).
		SetBody(json.RawMessage(op.Payload)).
		Post(endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return requestError(resp)
	}
	return nil
}

func requestError(resp *resty.Response) error {
	detail := ""
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		detail = body.Detail
	}
	return &RequestError{StatusCode: resp.StatusCode(), Detail: detail}
}
