// Package service holds the business rules of the board: posts and their
// likes and comments, notifications, chat and accounts.
package service

import (
	"context"
	"errors"

	"bulletin/internal/models"

	"gorm.io/gorm"
)

// Publisher signals live topics after a successful write.
type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...string) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// FlagChecker reports whether a feature flag is on for a subject.
type FlagChecker interface {
	Enabled(name, subject string) bool
}

func flagEnabled(f FlagChecker, name, subject string) bool {
	return f != nil && f.Enabled(name, subject)
}

// notFound maps gorm's missing-row error to a 404 AppError.
func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
