package user

import (
	"database/sql"
	"strconv"
	"time"
)

// Role controls access to staff-only commands.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is a requester identified by their external chat-platform ID.
type User struct {
	ID         int64
	Source     string // e.g. "tg"
	ExternalID int64
	Username   sql.NullString
	FullName   sql.NullString
	Department sql.NullString // Group/department shown in staff notifications
	Role       Role
	CreatedAt  time.Time
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.FullName.Valid && u.FullName.String != "" {
		return u.FullName.String
	}
	if u.Username.Valid && u.Username.String != "" {
		return "@" + u.Username.String
	}
	return "id" + strconv.FormatInt(u.ExternalID, 10)
}
