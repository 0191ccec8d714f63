package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rishad7060/tillagent/internal/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

// ─── Session cache ────────────────────────────────────────────────────────────

func TestCacheUserRoundTrip(t *testing.T) {
	repo := NewCacheRepository(testDB(t))
	ctx := context.Background()

	_, ok := repo.GetUser(ctx)
	assert.False(t, ok)

	user := &model.User{ID: "u-1", Username: "maria", Name: "Maria", Role: "cashier", Token: "tok"}
	require.NoError(t, repo.SaveUser(ctx, user))

	got, ok := repo.GetUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "maria", got.Username)
	assert.Equal(t, "tok", got.Token)
}

func TestCacheSessionRoundTrip(t *testing.T) {
	repo := NewCacheRepository(testDB(t))
	ctx := context.Background()

	session := &model.RegistrySession{
		ID:            7,
		SessionNumber: "RS-20260828-001",
		Status:        model.SessionOpen,
		OpeningCash:   decimal.NewFromInt(5000),
	}
	require.NoError(t, repo.SaveRegistrySession(ctx, session))

	got, ok := repo.GetRegistrySession(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ID)
	assert.True(t, got.OpeningCash.Equal(decimal.NewFromInt(5000)))

	require.NoError(t, repo.ClearRegistrySession(ctx))
	_, ok = repo.GetRegistrySession(ctx)
	assert.False(t, ok)
}

func TestClearSessionKeepsUser(t *testing.T) {
	repo := NewCacheRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveUser(ctx, &model.User{ID: "u-1", Username: "maria"}))
	require.NoError(t, repo.SaveRegistrySession(ctx, &model.RegistrySession{ID: 1, Status: model.SessionOpen}))

	require.NoError(t, repo.ClearRegistrySession(ctx))

	_, ok := repo.GetUser(ctx)
	assert.True(t, ok, "clearing the session snapshot must not evict the cached user")
}

func TestCachePermissionsRoundTrip(t *testing.T) {
	repo := NewCacheRepository(testDB(t))
	ctx := context.Background()

	perms := model.Permissions{"registry.close": true, "refund.create": false}
	require.NoError(t, repo.SavePermissions(ctx, perms))

	got, ok := repo.GetPermissions(ctx)
	require.True(t, ok)
	assert.Equal(t, perms, got)
}

func TestClearAllIsIdempotent(t *testing.T) {
	repo := NewCacheRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.ClearAll(ctx)) // nothing cached yet

	require.NoError(t, repo.SaveUser(ctx, &model.User{ID: "u-1"}))
	require.NoError(t, repo.ClearAll(ctx))
	require.NoError(t, repo.ClearAll(ctx))

	_, ok := repo.GetUser(ctx)
	assert.False(t, ok)
}

func TestCorruptCacheIsAMiss(t *testing.T) {
	db := testDB(t)
	repo := NewCacheRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.SessionCacheRow{
		ID:       cacheRowID,
		UserJSON: []byte("{not json"),
	}).Error)

	_, ok := repo.GetUser(ctx)
	assert.False(t, ok, "corrupt snapshot must degrade to a cache miss, not an error")
}

// ─── Outbox ──────────────────────────────────────────────────────────────────

func pendingOp(id, opType string, createdAt time.Time) *model.PendingOperation {
	return &model.PendingOperation{
		ID:             id,
		Type:           opType,
		Payload:        []byte(`{}`),
		IdempotencyKey: "key-" + id,
		DeviceID:       "till-1",
		CreatedAt:      createdAt,
	}
}

func TestOutboxFIFOOrder(t *testing.T) {
	repo := NewOutboxRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	// Enqueued out of creation order on purpose.
	require.NoError(t, repo.Enqueue(ctx, pendingOp("c", model.OpRefund, base.Add(2*time.Second))))
	require.NoError(t, repo.Enqueue(ctx, pendingOp("a", model.OpOrder, base)))
	require.NoError(t, repo.Enqueue(ctx, pendingOp("b", model.OpCashTransaction, base.Add(time.Second))))

	ops, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "a", ops[0].ID)
	assert.Equal(t, "b", ops[1].ID)
	assert.Equal(t, "c", ops[2].ID)
}

func TestOutboxListDueRespectsBackoff(t *testing.T) {
	repo := NewOutboxRepository(testDB(t))
	ctx := context.Background()
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Enqueue(ctx, pendingOp("fresh", model.OpOrder, now)))
	require.NoError(t, repo.Enqueue(ctx, pendingOp("waiting", model.OpOrder, now)))
	require.NoError(t, repo.RecordAttempt(ctx, "waiting", 1, now.Add(time.Minute), "backend returned 503"))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "fresh", due[0].ID)

	// After the window elapses the entry is due again.
	due, err = repo.ListDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestOutboxCountByType(t *testing.T) {
	repo := NewOutboxRepository(testDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Enqueue(ctx, pendingOp("1", model.OpOrder, now)))
	require.NoError(t, repo.Enqueue(ctx, pendingOp("2", model.OpOrder, now)))
	require.NoError(t, repo.Enqueue(ctx, pendingOp("3", model.OpCashTransaction, now)))

	counts, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.ByType[model.OpOrder])
	assert.Equal(t, int64(1), counts.ByType[model.OpCashTransaction])
}

func TestOutboxRemove(t *testing.T) {
	repo := NewOutboxRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, pendingOp("1", model.OpOrder, time.Now().UTC())))
	require.NoError(t, repo.Remove(ctx, "1"))

	counts, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
}

func TestOutboxRecordAttemptBookkeeping(t *testing.T) {
	repo := NewOutboxRepository(testDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Enqueue(ctx, pendingOp("1", model.OpOrder, now)))
	next := now.Add(30 * time.Second)
	require.NoError(t, repo.RecordAttempt(ctx, "1", 3, next, "backend returned 500"))

	ops, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 3, ops[0].Attempts)
	require.NotNil(t, ops[0].NextAttemptAt)
	assert.WithinDuration(t, next, *ops[0].NextAttemptAt, time.Second)
	require.NotNil(t, ops[0].LastError)
	assert.Equal(t, "backend returned 500", *ops[0].LastError)
}
