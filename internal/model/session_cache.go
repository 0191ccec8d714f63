package model

import "time"

// User is the operator snapshot cached at the last successful online login.
// PINHash is a bcrypt hash of the operator's PIN, kept so the till can be
// unlocked while offline; the plaintext PIN is never stored.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	PINHash  string `json:"pinHash,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Permissions is the permission set snapshot cached alongside the user.
// The agent only stores and replays it for the UI; permission-matrix
// semantics are the back office's business.
type Permissions map[string]bool

// SessionCacheRow is the single persisted row backing the session cache:
// {user, registry session, permissions} as independent JSON columns so a
// partial update (e.g. refreshing only the session snapshot) rewrites only
// its own column.
type SessionCacheRow struct {
	ID              uint   `gorm:"primaryKey"`
	UserJSON        []byte `gorm:"type:blob"`
	SessionJSON     []byte `gorm:"type:blob"`
	PermissionsJSON []byte `gorm:"type:blob"`
	UpdatedAt       time.Time
}

// TableName implements the GORM tabler interface.
func (SessionCacheRow) TableName() string { return "session_cache" }
