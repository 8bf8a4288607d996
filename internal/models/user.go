package models

import (
	"time"
)

// Role gates which lifecycle transitions an actor may request.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleWorker  Role = "worker"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role named by s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCitizen, RoleWorker, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   string
	Role Role
}

// User is the role registry entry for an identity. Roles are assigned by admins;
// an identity without a row falls back to the role carried by its token.
type User struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Role           Role      `gorm:"type:text;not null" json:"role"`
	TelegramChatID *int64    `gorm:"uniqueIndex" json:"telegram_chat_id,omitempty"`
	Language       string    `gorm:"type:text" json:"language,omitempty"`
	UpdatedBy      string    `gorm:"type:text" json:"updated_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
