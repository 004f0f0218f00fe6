package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bulletin/internal/models"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

type breakerUploader struct {
	next Uploader
	cb   *gobreaker.CircuitBreaker[models.Attachment]
}

// WithBreaker stops calling a failing provider for a while after repeated
// failures. Size and validation rejections do not count against it.
func WithBreaker(next Uploader) Uploader {
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrFileTooLarge) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("upload circuit breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &breakerUploader{next: next, cb: gobreaker.NewCircuitBreaker[models.Attachment](settings)}
}

func (b *breakerUploader) Name() string { return b.next.Name() }

func (b *breakerUploader) Upload(ctx context.Context, f File) (models.Attachment, error) {
	return b.cb.Execute(func() (models.Attachment, error) {
		return b.next.Upload(ctx, f)
	})
}

func (b *breakerUploader) Delete(ctx context.Context, a models.Attachment) error {
	return b.next.Delete(ctx, a)
}

// State reports the breaker state of an uploader built by WithBreaker.
func State(u Uploader) string {
	if b, ok := u.(*breakerUploader); ok {
		return b.cb.State().String()
	}
	return ""
}
