package models

import "time"

// Post types.
const (
	PostTypeUpdate   = "update"
	PostTypeShowcase = "showcase"
	PostTypeQuestion = "question"
	PostTypeTip      = "tip"
	PostTypeGeneral  = "general"
)

// Post length limits.
const (
	MaxPostTitleLength   = 200
	MaxPostContentLength = 5000
)

// ValidPostType reports whether t is a known post type.
func ValidPostType(t string) bool {
	switch t {
	case PostTypeUpdate, PostTypeShowcase, PostTypeQuestion, PostTypeTip, PostTypeGeneral:
		return true
	}
	return false
}

// RequiresRelatedItem reports whether posts of type t must point at a project, task or resource.
func RequiresRelatedItem(t string) bool {
	return t == PostTypeUpdate || t == PostTypeShowcase
}

// Post is a user's update about their DIY work.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"-"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	PostType   string    `gorm:"size:20;not null;index" json:"post_type"`
	ProjectID  *uint     `gorm:"index" json:"project_id"`
	Project    *Project  `gorm:"foreignKey:ProjectID" json:"-"`
	TaskID     *uint     `gorm:"index" json:"task_id"`
	Task       *Task     `gorm:"foreignKey:TaskID" json:"-"`
	ResourceID *uint     `gorm:"index" json:"resource_id"`
	Resource   *Resource `gorm:"foreignKey:ResourceID" json:"-"`
	Public     bool      `gorm:"not null;index" json:"public"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool      `gorm:"->" json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelatedItemType names the first referenced item, or "" when the post stands alone.
func (p *Post) RelatedItemType() string {
	switch {
	case p.ProjectID != nil:
		return "project"
	case p.TaskID != nil:
		return "task"
	case p.ResourceID != nil:
		return "resource"
	}
	return ""
}

// Comment is a reply to a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxCommentLength bounds comment content.
const MaxCommentLength = 2000

// Like records that a user liked a post. A user likes a post at most once.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
