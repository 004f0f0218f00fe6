package models

import "time"

// NotificationType is the event that produced a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification is addressed to UserID about an action ActorID took on one of their posts.
type Notification struct {
	ID             string           `gorm:"primaryKey;size:64" json:"id"`
	UserID         string           `gorm:"size:64;not null;index" json:"userId"`
	Type           NotificationType `gorm:"size:16;not null" json:"type"`
	PostID         string           `gorm:"size:64;not null" json:"postId"`
	PostTitle      string           `gorm:"not null" json:"postTitle"`
	ActorID        string           `gorm:"size:64;not null" json:"actorId"`
	ActorName      string           `gorm:"not null" json:"actorName"`
	Message        string           `gorm:"not null" json:"message"`
	IsRead         bool             `gorm:"not null;default:false;index" json:"isRead"`
	CommentContent *string          `gorm:"type:text" json:"commentContent"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// NotificationMessage renders the recipient-facing text for an event.
func NotificationMessage(kind NotificationType, actorName string) string {
	switch kind {
	case NotificationLike:
		return actorName + "님이 회원님의 게시글을 좋아합니다"
	case NotificationComment:
		return actorName + "님이 회원님의 게시글에 댓글을 달았습니다"
	default:
		return ""
	}
}
