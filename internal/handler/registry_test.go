package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/store"
	syncmgr "github.com/rishad7060/tillagent/internal/sync"
)

type fakeBackOffice struct {
	pingErr   error
	session   *model.RegistrySession
	closed    *model.RegistrySession
	refunds   []model.RefundSummary
	submitted int
}

func (f *fakeBackOffice) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeBackOffice) Login(ctx context.Context, username, pin string) (*remote.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackOffice) GetCurrentSession(ctx context.Context) (*model.RegistrySession, error) {
	if f.session == nil {
		return nil, remote.ErrNoOpenSession
	}
	return f.session, nil
}

func (f *fakeBackOffice) OpenSession(ctx context.Context, req remote.OpenSessionRequest) (*model.RegistrySession, error) {
	return f.session, nil
}

func (f *fakeBackOffice) CloseSession(ctx context.Context, id int64, req remote.CloseSessionRequest) (*model.RegistrySession, error) {
	return f.closed, nil
}

func (f *fakeBackOffice) GetPendingRefunds(ctx context.Context, sessionID int64) ([]model.RefundSummary, error) {
	return f.refunds, nil
}

func (f *fakeBackOffice) Submit(ctx context.Context, op *model.PendingOperation) error {
	f.submitted++
	return nil
}

type env struct {
	router  *gin.Engine
	backend *fakeBackOffice
	cache   store.CacheRepository
	oracle  *connectivity.Oracle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	backend := &fakeBackOffice{}
	cache := store.NewCacheRepository(db)
	outbox := store.NewOutboxRepository(db)
	oracle := connectivity.NewOracle(backend, time.Second)
	notifier := event.NewNotifier()
	mgr := syncmgr.NewManager(outbox, backend, oracle, notifier, nil, "till-1", 8)
	ctrl := registry.NewController(cache, backend, oracle, mgr, notifier, nil, decimal.NewFromInt(1000))

	regH := NewRegistryHandler(ctrl, cache)
	opsH := NewOperationsHandler(ctrl, cache)
	syncH := NewSyncHandler(mgr, oracle)

	r := gin.New()
	r.GET("/v1/registry/current", regH.Current)
	r.POST("/v1/registry/open", regH.Open)
	r.POST("/v1/registry/close", regH.Close)
	r.POST("/v1/cash-transactions", opsH.CreateCashTransaction)
	r.GET("/v1/sync/status", syncH.Status)
	r.POST("/v1/sync/run", syncH.Run)

	return &env{router: r, backend: backend, cache: cache, oracle: oracle}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) loginOperator(t *testing.T) {
	t.Helper()
	require.NoError(t, e.cache.SaveUser(context.Background(), &model.User{ID: "u-1", Username: "maria"}))
}

func openSession() *model.RegistrySession {
	return &model.RegistrySession{
		ID:            42,
		SessionNumber: "RS-20260828-001",
		Status:        model.SessionOpen,
		OpeningCash:   decimal.NewFromInt(5000),
		CashPayments:  decimal.NewFromInt(3200),
		CashOut:       decimal.NewFromInt(500),
	}
}

func TestCurrentMarksDataSource(t *testing.T) {
	e := newEnv(t)
	e.backend.session = openSession()

	w := e.do(t, http.MethodGet, "/v1/registry/current", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "server", w.Header().Get("X-Data-Source"))

	var resp struct {
		ExpectedCash string `json:"expectedCash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "7700", resp.ExpectedCash)
}

func TestCurrentNoSessionIs404(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/registry/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenRequiresOperator(t *testing.T) {
	e := newEnv(t)
	e.backend.session = openSession()

	w := e.do(t, http.MethodPost, "/v1/registry/open", gin.H{"openingCash": "5000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOpenReturns201(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()

	w := e.do(t, http.MethodPost, "/v1/registry/open", gin.H{"openingCash": "5000"})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Attached bool `json:"attached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Attached)
}

func TestCloseRejectionCarriesCode(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()
	require.NoError(t, e.cache.SaveRegistrySession(context.Background(), openSession()))

	// Variance -1200 without notes
	w := e.do(t, http.MethodPost, "/v1/registry/close", gin.H{"actualCash": "6500"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, registry.CodeNotesRequired, resp.Code)
}

func TestCloseWithoutActualCashRejected(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()
	require.NoError(t, e.cache.SaveRegistrySession(context.Background(), openSession()))

	// Notes-only body: no count was entered, so nothing may close.
	w := e.do(t, http.MethodPost, "/v1/registry/close", gin.H{"closingNotes": "count skipped"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, registry.CodeInvalidActualCash, resp.Code)

	// Same for the empty body.
	w = e.do(t, http.MethodPost, "/v1/registry/close", gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOpenWithoutOpeningCashRejected(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()

	w := e.do(t, http.MethodPost, "/v1/registry/open", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenAcceptsExplicitZeroFloat(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()

	w := e.do(t, http.MethodPost, "/v1/registry/open", gin.H{"openingCash": "0"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestClosePendingRefundsListsBlockers(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	e.backend.session = openSession()
	e.backend.refunds = []model.RefundSummary{{ID: 9, OrderID: 301, Amount: decimal.NewFromInt(250), Status: "pending"}}
	require.NoError(t, e.cache.SaveRegistrySession(context.Background(), openSession()))

	w := e.do(t, http.MethodPost, "/v1/registry/close", gin.H{"actualCash": "7700"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code           string                `json:"code"`
		PendingRefunds []model.RefundSummary `json:"pendingRefunds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, registry.CodePendingRefunds, resp.Code)
	require.Len(t, resp.PendingRefunds, 1)
}

func TestCashTransactionValidation(t *testing.T) {
	e := newEnv(t)
	e.loginOperator(t)
	require.NoError(t, e.cache.SaveRegistrySession(context.Background(), openSession()))

	// Amount must be > 0, reason at least 3 chars.
	w := e.do(t, http.MethodPost, "/v1/cash-transactions", gin.H{
		"transactionType": "cash_out", "amount": "0", "reason": "x",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, http.MethodPost, "/v1/cash-transactions", gin.H{
		"transactionType": "cash_out", "amount": "500", "reason": "supplier payment",
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSyncRunOfflineAnswersFast(t *testing.T) {
	e := newEnv(t)
	e.backend.pingErr = errors.New("dial tcp: connection refused")

	w := e.do(t, http.MethodPost, "/v1/sync/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OFFLINE", resp.Code)
}

func TestSyncStatus(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/sync/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Online  bool `json:"online"`
		Pending struct {
			Total int64 `json:"total"`
		} `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Online)
	assert.Zero(t, resp.Pending.Total)
}
