package service

import (
	"context"
	"strings"

	"bulletin/internal/models"
	"bulletin/internal/repository"
	"bulletin/internal/validation"
)

type PushService struct {
	repo      repository.PushSubscriptionRepository
	publicKey string
}

type PushSubscriptionInput struct {
	UserID   string
	Endpoint string
	P256dh   string
	Auth     string
}

func NewPushService(repo repository.PushSubscriptionRepository, vapidPublicKey string) *PushService {
	return &PushService{repo: repo, publicKey: vapidPublicKey}
}

// Enabled reports whether the server has VAPID keys configured.
func (s *PushService) Enabled() bool { return s.publicKey != "" }

func (s *PushService) PublicKey() string { return s.publicKey }

func (s *PushService) Subscribe(ctx context.Context, in PushSubscriptionInput) (*models.PushSubscription, error) {
	if !s.Enabled() {
		return nil, models.NewValidationError("Push notifications are not configured")
	}
	sub := &models.PushSubscription{
		UserID:   in.UserID,
		Endpoint: strings.TrimSpace(in.Endpoint),
		P256dh:   strings.TrimSpace(in.P256dh),
		Auth:     strings.TrimSpace(in.Auth),
	}
	if err := validation.Struct(sub); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *PushService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return models.NewValidationError("endpoint is required")
	}
	return s.repo.DeleteForUser(ctx, userID, endpoint)
}
