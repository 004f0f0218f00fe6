// Package storage hands attachment bytes to an external hosting provider and
// returns the public URL the post will reference.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bulletin/internal/config"
	"bulletin/internal/models"

	"github.com/google/uuid"
)

// DefaultMaxBytes is the per-file limit of the free image host.
const DefaultMaxBytes int64 = 32 * 1024 * 1024

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrProviderRejected = errors.New("upload provider rejected the file")
	ErrUnknownProvider  = errors.New("unknown upload provider")
	ErrNotConfigured    = errors.New("upload provider not configured")
)

// File is one upload as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores files with a hosting provider.
type Uploader interface {
	Upload(ctx context.Context, f File) (models.Attachment, error)
	Delete(ctx context.Context, a models.Attachment) error
	Name() string
}

// SizeError names the file that exceeded the limit.
type SizeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("파일 \"%s\"이 %dMB를 초과합니다. (%.2f MB)",
		e.Name, e.Limit/(1024*1024), float64(e.Size)/1024/1024)
}

func (e *SizeError) Is(target error) bool { return target == ErrFileTooLarge }

// CheckSize rejects files above limit. A non-positive limit means DefaultMaxBytes.
func CheckSize(f File, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if f.Size > limit {
		return &SizeError{Name: f.Name, Size: f.Size, Limit: limit}
	}
	return nil
}

// UploadError wraps a provider failure with the file it happened on.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("\"%s\" 업로드 실패: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// NewAttachmentID returns unix millis followed by a short random suffix.
func NewAttachmentID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + suffix
}

// New builds the configured provider, size-limited and behind a circuit breaker.
func New(cfg *config.Config) (Uploader, error) {
	var (
		provider Uploader
		err      error
	)
	switch cfg.UploadProvider {
	case config.UploadProviderImgBB, "":
		provider, err = NewImgBBUploader(cfg.ImgBBBaseURL, cfg.ImgBBAPIKey)
	case config.UploadProviderCloudinary:
		provider, err = NewCloudinaryUploader(cfg.CloudinaryURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.UploadProvider)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("upload provider configured", slog.String("provider", provider.Name()))
	return WithBreaker(WithSizeLimit(provider, cfg.MaxUploadBytes)), nil
}

type sizeLimited struct {
	next  Uploader
	limit int64
}

// WithSizeLimit rejects oversized files before the provider is contacted.
func WithSizeLimit(next Uploader, limit int64) Uploader {
	return &sizeLimited{next: next, limit: limit}
}

func (s *sizeLimited) Name() string { return s.next.Name() }

func (s *sizeLimited) Upload(ctx context.Context, f File) (models.Attachment, error) {
	if err := CheckSize(f, s.limit); err != nil {
		return models.Attachment{}, err
	}
	return s.next.Upload(ctx, f)
}

func (s *sizeLimited) Delete(ctx context.Context, a models.Attachment) error {
	return s.next.Delete(ctx, a)
}
