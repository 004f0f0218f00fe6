package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"bulletin/internal/featureflags"
	"bulletin/internal/models"
	"bulletin/internal/realtime"
	"bulletin/internal/repository"
)

type ChatService struct {
	chatRepo   repository.ChatRepository
	globalRepo repository.GlobalChatRepository
	publisher  Publisher
	flags      FlagChecker
}

type CreateRoomInput struct {
	SelfID    string
	SelfName  string
	OtherID   string
	OtherName string
}

type SendMessageInput struct {
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
}

func NewChatService(
	chatRepo repository.ChatRepository,
	globalRepo repository.GlobalChatRepository,
	publisher Publisher,
	flags FlagChecker,
) *ChatService {
	return &ChatService{
		chatRepo:   chatRepo,
		globalRepo: globalRepo,
		publisher:  publisherOrNop(publisher),
		flags:      flags,
	}
}

func newRoom(id string, in CreateRoomInput) *models.ChatRoom {
	return &models.ChatRoom{
		ID: id,
		Members: []models.ChatRoomParticipant{
			{UserID: in.SelfID, DisplayName: in.SelfName},
			{UserID: in.OtherID, DisplayName: in.OtherName},
		},
	}
}

// CreateOrGetChatRoom returns the room shared by the two users, creating it
// when none exists. By default the lookup and the insert are separate steps
// and two simultaneous first contacts can create two rooms. With the
// deterministic_chat_rooms flag a new room is keyed by the user pair, so
// simultaneous inserts converge on one row. Existing rooms always win.
func (s *ChatService) CreateOrGetChatRoom(ctx context.Context, in CreateRoomInput) (string, error) {
	in.SelfID = strings.TrimSpace(in.SelfID)
	in.OtherID = strings.TrimSpace(in.OtherID)
	if in.SelfID == "" || in.OtherID == "" {
		return "", models.NewValidationError("Both participants are required")
	}
	if in.SelfID == in.OtherID {
		return "", models.NewValidationError("Cannot start a chat with yourself")
	}

	rooms, err := s.chatRepo.ListRoomsForUser(ctx, in.SelfID)
	if err != nil {
		return "", err
	}
	for _, r := range rooms {
		if r.HasParticipant(in.OtherID) {
			return r.ID, nil
		}
	}

	// The pair key is the rollout subject so both users get the same answer.
	pairID := models.DirectRoomID(in.SelfID, in.OtherID)
	if flagEnabled(s.flags, featureflags.DeterministicChatRooms, pairID) {
		room := newRoom(pairID, in)
		created, err := s.chatRepo.CreateRoomIfAbsent(ctx, room)
		if err != nil {
			return "", err
		}
		if created {
			s.publishRoomLists(ctx, in.SelfID, in.OtherID)
		}
		return room.ID, nil
	}

	room := newRoom("", in)
	if err := s.chatRepo.CreateRoom(ctx, room); err != nil {
		return "", err
	}
	s.publishRoomLists(ctx, in.SelfID, in.OtherID)
	return room.ID, nil
}

func (s *ChatService) publishRoomLists(ctx context.Context, userIDs ...string) {
	topics := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		topics = append(topics, realtime.UserChatRoomsTopic(id))
	}
	s.publisher.Publish(ctx, topics...)
}

// GetRoom returns a room the user participates in.
func (s *ChatService) GetRoom(ctx context.Context, selfID, roomID string) (*models.ChatRoom, error) {
	room, err := s.chatRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, notFound(err, "ChatRoom", roomID)
	}
	if !room.HasParticipant(selfID) {
		return nil, models.NewForbiddenError("Not a participant of this chat room")
	}
	return room, nil
}

// ListRooms returns the user's rooms by most recent message. Rooms without
// messages come last, newest first.
func (s *ChatService) ListRooms(ctx context.Context, selfID string) ([]*models.ChatRoom, error) {
	rooms, err := s.chatRepo.ListRoomsForUser(ctx, selfID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		switch {
		case a.LastMessageTime != nil && b.LastMessageTime != nil:
			return a.LastMessageTime.After(*b.LastMessageTime)
		case a.LastMessageTime != nil:
			return true
		case b.LastMessageTime != nil:
			return false
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return rooms, nil
}

// ListMessages returns a room's messages, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, selfID, roomID string) ([]*models.ChatMessage, error) {
	if _, err := s.GetRoom(ctx, selfID, roomID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, roomID)
}

// SendMessage stores a message, then updates the room summary, then bumps
// the unread counter of every other participant. The writes are independent;
// a failure part way leaves the earlier ones in place.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	room, err := s.GetRoom(ctx, in.SenderID, in.RoomID)
	if err != nil {
		return nil, err
	}

	msg, err := models.NewChatMessage(in.RoomID, in.SenderID, in.SenderName, in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := s.chatRepo.UpdateLastMessage(ctx, room.ID, msg.Content, at); err != nil {
		return nil, err
	}

	atomic := flagEnabled(s.flags, featureflags.AtomicCounters, room.ID)
	for _, uid := range room.Participants {
		if uid == in.SenderID {
			continue
		}
		if atomic {
			err = s.chatRepo.IncrementUnread(ctx, room.ID, uid)
		} else {
			err = s.chatRepo.SetUnread(ctx, room.ID, uid, room.UnreadCount[uid]+1)
		}
		if err != nil {
			return nil, err
		}
	}

	topics := []string{realtime.ChatMessagesTopic(room.ID), realtime.ChatRoomTopic(room.ID)}
	for _, uid := range room.Participants {
		topics = append(topics, realtime.UserChatRoomsTopic(uid))
	}
	s.publisher.Publish(ctx, topics...)
	return msg, nil
}

// MarkRoomRead zeroes the user's unread counter for a room.
func (s *ChatService) MarkRoomRead(ctx context.Context, selfID, roomID string) error {
	room, err := s.GetRoom(ctx, selfID, roomID)
	if err != nil {
		return err
	}
	if room.UnreadCount[selfID] == 0 {
		return nil
	}
	if err := s.chatRepo.SetUnread(ctx, roomID, selfID, 0); err != nil {
		return err
	}
	s.publisher.Publish(ctx, realtime.ChatRoomTopic(roomID), realtime.UserChatRoomsTopic(selfID))
	return nil
}

func (s *ChatService) SendGlobalMessage(ctx context.Context, senderID, senderName, content string) (*models.GlobalChatMessage, error) {
	if senderID == "" {
		return nil, models.NewUnauthorizedError("Login required")
	}
	msg, err := models.NewGlobalChatMessage(senderID, senderName, content)
	if err != nil {
		return nil, err
	}
	if err := s.globalRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, realtime.TopicGlobalChat)
	return msg, nil
}

// ListGlobalMessages returns the newest GlobalChatLimit messages in chronological order.
func (s *ChatService) ListGlobalMessages(ctx context.Context) ([]*models.GlobalChatMessage, error) {
	msgs, err := s.globalRepo.ListLatest(ctx, models.GlobalChatLimit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// IsParticipant reports whether userID belongs to roomID. Missing rooms are not an error.
func (s *ChatService) IsParticipant(ctx context.Context, userID, roomID string) (bool, error) {
	_, err := s.GetRoom(ctx, userID, roomID)
	if err == nil {
		return true, nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && (appErr.Code == models.CodeForbidden || appErr.Code == models.CodeNotFound) {
		return false, nil
	}
	return false, err
}
