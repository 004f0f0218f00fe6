// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"bulletin/internal/validation"

	"gorm.io/datatypes"
)

// Category is one of the fixed board categories.
type Category string

const (
	CategoryGeneral    Category = "일반"
	CategoryNotice     Category = "공지사항"
	CategoryDiscussion Category = "자유 토론"
	CategoryQnA        Category = "질문/답변"
	CategoryDev        Category = "개발"
	CategoryDesign     Category = "디자인"
	CategoryCommunity  Category = "커뮤니티"
	CategoryOther      Category = "기타"

	// CategoryAll is a list filter value, never stored on a post.
	CategoryAll Category = "전체"
)

// Categories lists the storable categories in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryNotice,
	CategoryDiscussion,
	CategoryQnA,
	CategoryDev,
	CategoryDesign,
	CategoryCommunity,
	CategoryOther,
}

// ParseCategory returns the default category for an empty value and reports
// whether raw names a known category.
func ParseCategory(raw string) (Category, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryGeneral, true
	}
	for _, c := range Categories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// MatchesFilter reports whether a post in category c passes a list filter.
func (c Category) MatchesFilter(filter string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || filter == string(CategoryAll) || filter == string(c)
}

// Attachment is a file uploaded with a post.
type Attachment struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"min=0"`
}

// Post represents a board post.
type Post struct {
	ID           string                          `gorm:"primaryKey;size:64" json:"id"`
	Title        string                          `gorm:"not null" json:"title" validate:"notblank,max=200"`
	Content      string                          `gorm:"type:text;not null" json:"content" validate:"notblank"`
	AuthorID     string                          `gorm:"size:64;not null;index" json:"authorId" validate:"required"`
	AuthorName   string                          `gorm:"not null" json:"authorName"`
	CommentCount int                             `gorm:"not null;default:0" json:"commentCount"`
	ViewCount    int                             `gorm:"not null;default:0" json:"viewCount"`
	Category     Category                        `gorm:"size:32;not null;default:'일반'" json:"category"`
	Tags         datatypes.JSONSlice[string]     `json:"tags"`
	Attachments  datatypes.JSONSlice[Attachment] `json:"attachments" validate:"dive"`
	Likes        []string                        `gorm:"-" json:"likes"`
	CreatedAt    time.Time                       `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time                       `json:"updatedAt"`
}

// PostLike is one entry of a post's likes list. The (post, user) pair is unique.
type PostLike struct {
	PostID    string    `gorm:"primaryKey;size:64" json:"postId"`
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPost builds a post with defaults filled and required fields validated.
func NewPost(authorID, authorName, title, content, category string, tags []string, attachments []Attachment) (*Post, error) {
	cat, ok := ParseCategory(category)
	if !ok {
		return nil, NewValidationError("Unknown category: " + category)
	}
	if tags == nil {
		tags = []string{}
	}
	if attachments == nil {
		attachments = []Attachment{}
	}

	post := &Post{
		Title:       strings.TrimSpace(title),
		Content:     content,
		AuthorID:    authorID,
		AuthorName:  authorName,
		Category:    cat,
		Tags:        tags,
		Attachments: attachments,
		Likes:       []string{},
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	return post, nil
}

// Validate checks the required fields and attachment shapes.
func (p *Post) Validate() error {
	if err := validation.Struct(p); err != nil {
		return NewValidationError(err.Error())
	}
	return nil
}

// HasLiked reports whether userID is in the likes list.
func (p *Post) HasLiked(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ParseTags splits a comma separated tag string, trimming blanks away.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
