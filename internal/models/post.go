package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a publication inside a group
type Post struct {
	ID            uint         `gorm:"column:id;primaryKey" json:"id"`
	GroupID       uint         `gorm:"column:group_id;not null;index" json:"group_id"`
	GroupMemberID uint         `gorm:"column:group_member_id;not null;index" json:"group_member_id"`
	GroupMember   *GroupMember `gorm:"-" json:"group_member,omitempty"`
	Caption       string       `gorm:"column:caption;size:2000" json:"caption"`

	Media []Media `gorm:"-" json:"media,omitempty"`

	CreatedAt time.Time      `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Post) TableName() string {
	return "posts"
}

// Media is one stored photo attached to a post. MediaURL is always a
// backend-relative proxy reference (/media/proxy/{file_id}); node addresses
// never reach the database.
type Media struct {
	ID       uint   `gorm:"column:id;primaryKey" json:"id"`
	PostID   uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	Post     *Post  `gorm:"-" json:"post,omitempty"`
	MediaURL string `gorm:"column:media_url;size:255;not null" json:"media_url"`
	Order    int    `gorm:"column:display_order;default:0" json:"order"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Media) TableName() string {
	return "media"
}

// Comment represents a comment on a post
type Comment struct {
	ID            uint         `gorm:"column:id;primaryKey" json:"id"`
	PostID        uint         `gorm:"column:post_id;not null;index" json:"post_id"`
	GroupMemberID uint         `gorm:"column:group_member_id;not null;index" json:"group_member_id"`
	GroupMember   *GroupMember `gorm:"-" json:"group_member,omitempty"`
	Content       string       `gorm:"column:content;size:1000;not null" json:"content"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}

// Like represents a like on a post, one per member per post
type Like struct {
	ID            uint `gorm:"column:id;primaryKey" json:"id"`
	PostID        uint `gorm:"column:post_id;not null;uniqueIndex:idx_like_post_member" json:"post_id"`
	GroupMemberID uint `gorm:"column:group_member_id;not null;uniqueIndex:idx_like_post_member" json:"group_member_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}
