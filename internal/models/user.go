package models

import (
	"database/sql"
	"time"
)

// User represents a row in the 'users' table. Users are created lazily
// the first time a telegram id shows up in a request.
type User struct {
	UserID     int64          `db:"user_id" json:"user_id"`
	TelegramID int64          `db:"telegram_id" json:"telegram_id"`
	Username   sql.NullString `db:"username" json:"username,omitempty"`
	FirstName  sql.NullString `db:"first_name" json:"first_name,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	IsActive   bool           `db:"is_active" json:"is_active"`
}
