package users

import (
	"strings"
	"time"
)

// User models a registered account together with its editable profile fields.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Username     string    `gorm:"column:username;size:190;not null;uniqueIndex:idx_users_username"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null"`
	DisplayName  string    `gorm:"column:display_name;size:190"`
	City         string    `gorm:"column:city;size:190"`
	Country      string    `gorm:"column:country;size:190"`
	Introduction string    `gorm:"column:introduction;type:text"`
	LookingFor   string    `gorm:"column:looking_for;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// ProfilePatch carries a partial profile update. Nil fields are left
// untouched; identity and credential fields are not patchable.
type ProfilePatch struct {
	DisplayName  *string
	City         *string
	Country      *string
	Introduction *string
	LookingFor   *string
}

// NormalizeUsername lowercases and trims a raw username for storage and lookup.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
