package models

import "time"

// PushSubscription is a browser web-push endpoint registered by a user.
type PushSubscription struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"userId"`
	Endpoint  string    `gorm:"uniqueIndex;not null" json:"endpoint" validate:"required,url"`
	P256dh    string    `gorm:"not null" json:"p256dh" validate:"required"`
	Auth      string    `gorm:"not null" json:"auth" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}
