package repository

import (
	"context"

	"bulletin/internal/models"

	"gorm.io/gorm"
)

// GlobalChatRepository stores the board-wide chat.
type GlobalChatRepository interface {
	Create(ctx context.Context, msg *models.GlobalChatMessage) error
	ListLatest(ctx context.Context, limit int) ([]*models.GlobalChatMessage, error)
}

type globalChatRepository struct {
	db *gorm.DB
}

// NewGlobalChatRepository returns a gorm-backed GlobalChatRepository.
func NewGlobalChatRepository(db *gorm.DB) GlobalChatRepository {
	return &globalChatRepository{db: db}
}

func (r *globalChatRepository) Create(ctx context.Context, msg *models.GlobalChatMessage) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListLatest returns the newest limit messages, newest first.
func (r *globalChatRepository) ListLatest(ctx context.Context, limit int) ([]*models.GlobalChatMessage, error) {
	var msgs []*models.GlobalChatMessage
	err := readDB(r.db).WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
