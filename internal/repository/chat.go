package repository

import (
	"context"
	"time"

	"bulletin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for direct chat rooms and their messages.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error)
	GetRoom(ctx context.Context, id string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, roomID string) ([]*models.ChatMessage, error)
	UpdateLastMessage(ctx context.Context, roomID, content string, at time.Time) error
	SetUnread(ctx context.Context, roomID, userID string, count int) error
	IncrementUnread(ctx context.Context, roomID, userID string) error
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func prepareRoom(room *models.ChatRoom) {
	if room.ID == "" {
		room.ID = newID()
	}
	for i := range room.Members {
		room.Members[i].RoomID = room.ID
		room.Members[i].Position = i
	}
}

// CreateRoom inserts the room and its participants in one transaction.
func (r *chatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	prepareRoom(room)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(room).Error; err != nil {
			return err
		}
		if len(room.Members) == 0 {
			return nil
		}
		return tx.Create(&room.Members).Error
	})
	if err != nil {
		return translateError(err)
	}
	room.Hydrate()
	return nil
}

// CreateRoomIfAbsent is CreateRoom for caller-chosen ids: when the room
// already exists nothing is written and the stored room is left untouched.
// It reports whether this call inserted the room.
func (r *chatRepository) CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error) {
	prepareRoom(room)
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Members").Create(room)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		if !created || len(room.Members) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&room.Members).Error
	})
	return created && err == nil, err
}

func (r *chatRepository) GetRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Members", orderMembers).
		Where("id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	room.Hydrate()
	return &room, nil
}

// ListRoomsForUser returns every room the user participates in, unordered.
func (r *chatRepository) ListRoomsForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Members", orderMembers).
		Where("id IN (?)", r.db.Model(&models.ChatRoomParticipant{}).Select("room_id").Where("user_id = ?", userID)).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		room.Hydrate()
	}
	return rooms, nil
}

func orderMembers(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListMessages returns the room's messages oldest first.
func (r *chatRepository) ListMessages(ctx context.Context, roomID string) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, roomID, content string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		UpdateColumns(map[string]interface{}{
			"last_message":      content,
			"last_message_time": at,
		}).Error
}

func (r *chatRepository) SetUnread(ctx context.Context, roomID, userID string, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatRoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("unread_count", count).Error
}

func (r *chatRepository) IncrementUnread(ctx context.Context, roomID, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatRoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}
