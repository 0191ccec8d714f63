package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rishad7060/tillagent/internal/model"
)

// PendingCounts is the non-blocking outbox introspection result.
type PendingCounts struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"byType"`
}

// OutboxRepository is the durable pending-operations queue. Entries are
// appended when a user action occurs while offline (or an online request
// fails), replayed in creation order, and removed only after the back office
// confirms success. The only in-place mutation allowed is attempt/backoff
// bookkeeping.
type OutboxRepository interface {
	Enqueue(ctx context.Context, op *model.PendingOperation) error
	// List returns every pending operation in replay order:
	// created_at then id, ascending — FIFO within and across types.
	List(ctx context.Context) ([]model.PendingOperation, error)
	// ListDue returns entries whose backoff window has elapsed, same order.
	ListDue(ctx context.Context, now time.Time) ([]model.PendingOperation, error)
	Count(ctx context.Context) (PendingCounts, error)
	Remove(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
}

type outboxRepo struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepo{db: db} }

func (r *outboxRepo) Enqueue(ctx context.Context, op *model.PendingOperation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *outboxRepo) List(ctx context.Context) ([]model.PendingOperation, error) {
	var ops []model.PendingOperation
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&ops).Error
	return ops, err
}

func (r *outboxRepo) ListDue(ctx context.Context, now time.Time) ([]model.PendingOperation, error) {
	var ops []model.PendingOperation
	err := r.db.WithContext(ctx).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC, id ASC").
		Find(&ops).Error
	return ops, err
}

func (r *outboxRepo) Count(ctx context.Context) (PendingCounts, error) {
	counts := PendingCounts{ByType: make(map[string]int64)}

	var rows []struct {
		Type string
		N    int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.PendingOperation{}).
		Select("type, COUNT(*) AS n").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return counts, err
	}
	for _, row := range rows {
		counts.ByType[row.Type] = row.N
		counts.Total += row.N
	}
	return counts, nil
}

func (r *outboxRepo) Remove(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Delete(&model.PendingOperation{}, "id = ?", id).Error
}

func (r *outboxRepo) RecordAttempt(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.PendingOperation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
		}).Error
}
