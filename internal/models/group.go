package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberRole represents a user's role inside a single group
type MemberRole int

const (
	MemberRoleMember  MemberRole = 1
	MemberRoleAdmin   MemberRole = 2
	MemberRoleCreator MemberRole = 3
)

// Group represents a photo-sharing group
type Group struct {
	ID          uint   `gorm:"column:id;primaryKey" json:"id"`
	Name        string `gorm:"column:name;size:100;not null" json:"name"`
	Description string `gorm:"column:description;size:500" json:"description"`
	ImageURL    string `gorm:"column:image_url;size:255" json:"image_url"` // proxy reference
	InviteCode  string `gorm:"column:invite_code;size:20;uniqueIndex;not null" json:"invite_code"`
	CreatorID   uint   `gorm:"column:creator_id;not null;index" json:"creator_id"`
	Creator     *User  `gorm:"-" json:"creator,omitempty"`

	// Quota ceiling: maximum photo count this group may hold. Seeded from
	// config at creation, increased only by a succeeded payment.
	MaxPhotos int `gorm:"column:max_photos;not null" json:"max_photos"`

	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember links a user to a group with a role
type GroupMember struct {
	ID      uint       `gorm:"column:id;primaryKey" json:"id"`
	UserID  uint       `gorm:"column:user_id;not null;uniqueIndex:idx_member_user_group" json:"user_id"`
	GroupID uint       `gorm:"column:group_id;not null;uniqueIndex:idx_member_user_group;index" json:"group_id"`
	Role    MemberRole `gorm:"column:role;default:1" json:"role"`
	User    *User      `gorm:"-" json:"user,omitempty"`

	LastActivity *time.Time `gorm:"column:last_activity" json:"last_activity"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// GroupWithStats is the list view of a group with aggregate counters
type GroupWithStats struct {
	Group
	MemberCount     int64      `json:"member_count"`
	PhotoCount      int64      `json:"photo_count"`
	CurrentUserRole MemberRole `json:"current_user_role"`
}
