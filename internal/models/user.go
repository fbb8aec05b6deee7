package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// UserRole represents the platform-wide role of a user
type UserRole int

const (
	UserRoleMember    UserRole = 1
	UserRoleModerator UserRole = 2
	UserRoleAdmin     UserRole = 3
)

// MarshalJSON converts UserRole to string for JSON
func (r UserRole) MarshalJSON() ([]byte, error) {
	var s string
	switch r {
	case UserRoleMember:
		s = "member"
	case UserRoleModerator:
		s = "moderator"
	case UserRoleAdmin:
		s = "admin"
	default:
		s = "unknown"
	}
	return json.Marshal(s)
}

// UnmarshalJSON converts string back to UserRole for JSON parsing
func (r *UserRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as integer for backward compatibility
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*r = UserRole(i)
		return nil
	}
	switch s {
	case "member":
		*r = UserRoleMember
	case "moderator":
		*r = UserRoleModerator
	case "admin":
		*r = UserRoleAdmin
	default:
		*r = UserRoleMember
	}
	return nil
}

// User represents a platform account
type User struct {
	ID       uint     `gorm:"column:id;primaryKey" json:"id"`
	Username string   `gorm:"column:username;size:100;uniqueIndex;not null" json:"username"`
	Email    string   `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Password string   `gorm:"column:password;size:255;not null" json:"-"`
	Role     UserRole `gorm:"column:role;default:1;index" json:"role"`

	// Profile
	AvatarURL string `gorm:"column:avatar_url;size:255" json:"avatar_url"` // proxy reference, never a node URL
	Bio       string `gorm:"column:bio;size:500" json:"bio"`

	// 2FA
	TwoFAEnabled bool   `gorm:"column:two_fa_enabled;default:false" json:"two_fa_enabled"`
	TwoFASecret  string `gorm:"column:two_fa_secret;size:100" json:"-"`

	IsActive bool `gorm:"column:is_active;default:true" json:"is_active"`

	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
