package models

import (
	"strings"
	"time"

	"bulletin/internal/validation"
)

// ChatRoom is a direct conversation between exactly two users.
// Participants, ParticipantNames and UnreadCount are assembled from
// ChatRoomParticipant rows.
type ChatRoom struct {
	ID               string                `gorm:"primaryKey;size:64" json:"id"`
	LastMessage      string                `gorm:"type:text" json:"lastMessage"`
	LastMessageTime  *time.Time            `json:"lastMessageTime"`
	CreatedAt        time.Time             `json:"createdAt"`
	Members          []ChatRoomParticipant `gorm:"foreignKey:RoomID" json:"-"`
	Participants     []string              `gorm:"-" json:"participants"`
	ParticipantNames map[string]string     `gorm:"-" json:"participantNames"`
	UnreadCount      map[string]int        `gorm:"-" json:"unreadCount"`
}

// ChatRoomParticipant holds one member's display name and unread counter.
type ChatRoomParticipant struct {
	RoomID      string    `gorm:"primaryKey;size:64" json:"roomId"`
	UserID      string    `gorm:"primaryKey;size:64;index" json:"userId"`
	DisplayName string    `json:"displayName"`
	UnreadCount int       `gorm:"not null;default:0" json:"unreadCount"`
	Position    int       `gorm:"not null;default:0" json:"-"`
	JoinedAt    time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// Hydrate fills the map views from Members.
func (r *ChatRoom) Hydrate() {
	r.Participants = make([]string, 0, len(r.Members))
	r.ParticipantNames = make(map[string]string, len(r.Members))
	r.UnreadCount = make(map[string]int, len(r.Members))
	for _, m := range r.Members {
		r.Participants = append(r.Participants, m.UserID)
		r.ParticipantNames[m.UserID] = m.DisplayName
		r.UnreadCount[m.UserID] = m.UnreadCount
	}
}

// HasParticipant reports whether userID is a member of the room.
func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// DirectRoomID is the deterministic room key for a pair of users,
// independent of argument order.
func DirectRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm_" + a + "_" + b
}

// ChatMessage is a message inside a direct chat room.
type ChatMessage struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	RoomID     string    `gorm:"size:64;not null;index" json:"roomId" validate:"required"`
	SenderID   string    `gorm:"size:64;not null" json:"senderId" validate:"required"`
	SenderName string    `gorm:"not null" json:"senderName"`
	Content    string    `gorm:"type:text;not null" json:"content" validate:"notblank,max=10000"`
	IsRead     bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// NewChatMessage builds a validated, unread direct message.
func NewChatMessage(roomID, senderID, senderName, content string) (*ChatMessage, error) {
	m := &ChatMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    strings.TrimSpace(content),
	}
	if err := validation.Struct(m); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return m, nil
}

// GlobalChatLimit is how many of the newest global messages are served.
const GlobalChatLimit = 200

// GlobalChatMessage lives in the single board-wide chat.
type GlobalChatMessage struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	SenderID   string    `gorm:"size:64;not null" json:"senderId" validate:"required"`
	SenderName string    `gorm:"not null" json:"senderName"`
	Content    string    `gorm:"type:text;not null" json:"content" validate:"notblank,max=10000"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// NewGlobalChatMessage builds a validated global chat message.
func NewGlobalChatMessage(senderID, senderName, content string) (*GlobalChatMessage, error) {
	m := &GlobalChatMessage{
		SenderID:   senderID,
		SenderName: senderName,
		Content:    strings.TrimSpace(content),
	}
	if err := validation.Struct(m); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return m, nil
}
