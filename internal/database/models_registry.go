package database

import "bulletin/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.PostLike{},
		&models.Comment{},
		&models.Notification{},
		&models.ChatRoom{},
		&models.ChatRoomParticipant{},
		&models.ChatMessage{},
		&models.GlobalChatMessage{},
		&models.PushSubscription{},
	}
}
