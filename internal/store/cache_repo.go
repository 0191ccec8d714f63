package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rishad7060/tillagent/internal/model"
)

// CacheRepository is the session cache: cached user, cached registry-session
// snapshot and cached permission set, read first on every restore before any
// network call is attempted.
//
// Failure contract: read errors are swallowed and reported as a cache miss
// (ok == false) — a corrupt cache degrades to forcing re-login/re-fetch, it
// never crashes the restore flow. ClearAll is idempotent and never touches
// the outbox: unsynced operations are real business transactions and outlive
// any cache lifecycle event (logout, session expiry).
type CacheRepository interface {
	SaveUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context) (*model.User, bool)
	SaveRegistrySession(ctx context.Context, s *model.RegistrySession) error
	GetRegistrySession(ctx context.Context) (*model.RegistrySession, bool)
	ClearRegistrySession(ctx context.Context) error
	SavePermissions(ctx context.Context, p model.Permissions) error
	GetPermissions(ctx context.Context) (model.Permissions, bool)
	ClearAll(ctx context.Context) error
}

// The cache is one well-known row; every save is an upsert against it.
const cacheRowID = 1

type cacheRepo struct{ db *gorm.DB }

func NewCacheRepository(db *gorm.DB) CacheRepository { return &cacheRepo{db: db} }

func (r *cacheRepo) SaveUser(ctx context.Context, u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.upsert(ctx, "user_json", data)
}

func (r *cacheRepo) GetUser(ctx context.Context) (*model.User, bool) {
	row, ok := r.load(ctx)
	if !ok || len(row.UserJSON) == 0 {
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal(row.UserJSON, &u); err != nil {
		log.Warn().Err(err).Msg("cache: corrupt user snapshot — treating as miss")
		return nil, false
	}
	return &u, true
}

func (r *cacheRepo) SaveRegistrySession(ctx context.Context, s *model.RegistrySession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.upsert(ctx, "session_json", data)
}

func (r *cacheRepo) GetRegistrySession(ctx context.Context) (*model.RegistrySession, bool) {
	row, ok := r.load(ctx)
	if !ok || len(row.SessionJSON) == 0 {
		return nil, false
	}
	var s model.RegistrySession
	if err := json.Unmarshal(row.SessionJSON, &s); err != nil {
		log.Warn().Err(err).Msg("cache: corrupt session snapshot — treating as miss")
		return nil, false
	}
	return &s, true
}

func (r *cacheRepo) ClearRegistrySession(ctx context.Context) error {
	return r.upsert(ctx, "session_json", nil)
}

func (r *cacheRepo) SavePermissions(ctx context.Context, p model.Permissions) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.upsert(ctx, "permissions_json", data)
}

func (r *cacheRepo) GetPermissions(ctx context.Context) (model.Permissions, bool) {
	row, ok := r.load(ctx)
	if !ok || len(row.PermissionsJSON) == 0 {
		return nil, false
	}
	var p model.Permissions
	if err := json.Unmarshal(row.PermissionsJSON, &p); err != nil {
		log.Warn().Err(err).Msg("cache: corrupt permissions snapshot — treating as miss")
		return nil, false
	}
	return p, true
}

// ClearAll wipes the cache row. Safe to call when already empty.
func (r *cacheRepo) ClearAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("id = ?", cacheRowID).
		Delete(&model.SessionCacheRow{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (r *cacheRepo) load(ctx context.Context) (*model.SessionCacheRow, bool) {
	var row model.SessionCacheRow
	err := r.db.WithContext(ctx).First(&row, cacheRowID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Msg("cache: read failed — treating as miss")
		}
		return nil, false
	}
	return &row, true
}

func (r *cacheRepo) upsert(ctx context.Context, column string, data []byte) error {
	row := model.SessionCacheRow{ID: cacheRowID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{column: data}),
		}).
		Create(setColumn(&row, column, data)).Error
}

func setColumn(row *model.SessionCacheRow, column string, data []byte) *model.SessionCacheRow {
	switch column {
	case "user_json":
		row.UserJSON = data
	case "session_json":
		row.SessionJSON = data
	case "permissions_json":
		row.PermissionsJSON = data
	}
	return row
}
