package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rishad7060/tillagent/internal/model"
)

// Open establishes the on-device GORM/SQLite store and migrates the two
// tables the agent owns: the pending-operations outbox and the single-row
// session cache. WAL mode keeps a reader (pending-count introspection) from
// blocking a writer (a sale being enqueued) mid-shift.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY races
	// between the sync loop and UI handlers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.PendingOperation{}, &model.SessionCacheRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}
