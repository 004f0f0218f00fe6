package models

import (
	"strings"
	"time"

	"bulletin/internal/validation"
)

// MaxCommentLength bounds comment and chat message bodies.
const MaxCommentLength = 10000

// Comment belongs to a post. Deleting the post leaves its comments in place.
type Comment struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	PostID     string    `gorm:"size:64;not null;index" json:"postId" validate:"required"`
	Content    string    `gorm:"type:text;not null" json:"content" validate:"notblank,max=10000"`
	AuthorID   string    `gorm:"size:64;not null" json:"authorId" validate:"required"`
	AuthorName string    `gorm:"not null" json:"authorName"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewComment builds a validated comment with trimmed content.
func NewComment(postID, authorID, authorName, content string) (*Comment, error) {
	c := &Comment{
		PostID:     postID,
		Content:    strings.TrimSpace(content),
		AuthorID:   authorID,
		AuthorName: authorName,
	}
	if err := validation.Struct(c); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return c, nil
}
