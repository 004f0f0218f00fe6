package service

import (
	"context"

	"bulletin/internal/models"
	"bulletin/internal/storage"
)

type UploadService struct {
	uploader storage.Uploader
	maxBytes int64
}

func NewUploadService(uploader storage.Uploader, maxBytes int64) *UploadService {
	return &UploadService{uploader: uploader, maxBytes: maxBytes}
}

// UploadAll stores files in order. Every size is checked before the first
// upload; a provider failure stops the batch and files already stored stay.
func (s *UploadService) UploadAll(ctx context.Context, files []storage.File) ([]models.Attachment, error) {
	if s.uploader == nil {
		return nil, models.NewInternalError(storage.ErrNotConfigured)
	}
	if len(files) == 0 {
		return []models.Attachment{}, nil
	}
	for _, f := range files {
		if err := storage.CheckSize(f, s.maxBytes); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	out := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		att, err := s.uploader.Upload(ctx, f)
		if err != nil {
			return out, err
		}
		out = append(out, att)
	}
	return out, nil
}

// Delete removes an attachment from the host.
func (s *UploadService) Delete(ctx context.Context, a models.Attachment) error {
	if s.uploader == nil {
		return nil
	}
	return s.uploader.Delete(ctx, a)
}
