package service

import (
	"context"
	"log/slog"
	"sort"

	"bulletin/internal/models"
	"bulletin/internal/observability"
	"bulletin/internal/realtime"
	"bulletin/internal/repository"
)

// Notification list filters.
const (
	FilterAll    = "all"
	FilterUnread = "unread"
)

// NotificationInput describes an action on a post that its author should hear about.
type NotificationInput struct {
	RecipientID    string
	Kind           models.NotificationType
	PostID         string
	PostTitle      string
	ActorID        string
	ActorName      string
	CommentContent string
}

// Notifier creates notifications on behalf of other services.
type Notifier interface {
	CreateNotification(ctx context.Context, in NotificationInput)
}

// PushSender delivers a stored notification out of band.
type PushSender interface {
	NotifyAsync(n *models.Notification)
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	push      PushSender
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher, push PushSender) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisherOrNop(publisher),
		push:      push,
	}
}

// CreateNotification stores a notification for the recipient. Acting on your
// own post notifies nobody. Failures are logged and swallowed so the action
// that triggered the notification still succeeds.
func (s *NotificationService) CreateNotification(ctx context.Context, in NotificationInput) {
	if in.RecipientID == "" || in.RecipientID == in.ActorID {
		observability.NotificationsCreated.WithLabelValues(string(in.Kind), "skipped").Inc()
		return
	}

	n := &models.Notification{
		UserID:    in.RecipientID,
		Type:      in.Kind,
		PostID:    in.PostID,
		PostTitle: in.PostTitle,
		ActorID:   in.ActorID,
		ActorName: in.ActorName,
		Message:   models.NotificationMessage(in.Kind, in.ActorName),
	}
	if in.CommentContent != "" {
		content := in.CommentContent
		n.CommentContent = &content
	}

	if err := s.repo.Create(ctx, n); err != nil {
		observability.NotificationsCreated.WithLabelValues(string(in.Kind), "failed").Inc()
		slog.ErrorContext(ctx, "failed to create notification",
			slog.String("recipient_id", in.RecipientID),
			slog.String("post_id", in.PostID),
			slog.String("type", string(in.Kind)),
			slog.String("error", err.Error()))
		return
	}

	observability.NotificationsCreated.WithLabelValues(string(in.Kind), "created").Inc()
	s.publisher.Publish(ctx, realtime.NotificationsTopic(in.RecipientID))
	if s.push != nil {
		s.push.NotifyAsync(n)
	}
}

// ListNotifications returns the user's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID, filter string) ([]*models.Notification, error) {
	var unreadOnly bool
	switch filter {
	case "", FilterAll:
	case FilterUnread:
		unreadOnly = true
	default:
		return nil, models.NewValidationError("filter must be one of [all unread]")
	}

	list, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) owned(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Notification", id)
	}
	if n.UserID != userID {
		return nil, models.NewForbiddenError("Not allowed to modify this notification")
	}
	return n, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish(ctx, realtime.NotificationsTopic(userID))
	return nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish(ctx, realtime.NotificationsTopic(userID))
	return nil
}

// MarkAllAsRead flips every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publisher.Publish(ctx, realtime.NotificationsTopic(userID))
	}
	return n, nil
}

// DeleteAllRead removes the user's read notifications and returns how many were removed.
func (s *NotificationService) DeleteAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publisher.Publish(ctx, realtime.NotificationsTopic(userID))
	}
	return n, nil
}
