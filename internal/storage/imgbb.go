package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"bulletin/internal/models"
	"bulletin/internal/observability"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const imgbbTimeout = 60 * time.Second

// ImgBBUploader posts base64 payloads to the ImgBB image host.
type ImgBBUploader struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL       string `json:"url"`
		DeleteURL string `json:"delete_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewImgBBUploader(baseURL, apiKey string) (*ImgBBUploader, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: IMGBB_API_KEY is empty", ErrNotConfigured)
	}
	if baseURL == "" {
		baseURL = "https://api.imgbb.com"
	}
	return &ImgBBUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: imgbbTimeout,
	}, nil
}

func (u *ImgBBUploader) Name() string { return "imgbb" }

func (u *ImgBBUploader) endpoint() string {
	return u.baseURL + "/1/upload?key=" + url.QueryEscape(u.apiKey)
}

func (u *ImgBBUploader) Upload(ctx context.Context, f File) (att models.Attachment, err error) {
	_, span := observability.StartClientSpan(ctx, "imgbb", "upload")
	defer func() { observability.EndSpan(span, err) }()

	raw, err := io.ReadAll(f.Body)
	if err != nil {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: err}
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("image", base64.StdEncoding.EncodeToString(raw))

	agent := fiber.Post(u.endpoint()).
		MultipartForm(args).
		Timeout(u.timeout)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < u.timeout {
			agent.Timeout(remaining)
		}
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: errors.Join(errs...)}
	}
	if status < 200 || status >= 300 {
		return models.Attachment{}, &UploadError{
			Name: f.Name,
			Err:  fmt.Errorf("%w: ImgBB 업로드 실패: %s", ErrProviderRejected, utils.StatusMessage(status)),
		}
	}

	var resp imgbbResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: fmt.Errorf("decode imgbb response: %w", err)}
	}
	if !resp.Success || resp.Data.URL == "" {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: fmt.Errorf("%w: ImgBB 업로드 실패", ErrProviderRejected)}
	}

	size := f.Size
	if size <= 0 {
		size = int64(len(raw))
	}
	observability.UploadBytes.WithLabelValues(u.Name()).Observe(float64(size))

	return models.Attachment{
		ID:   NewAttachmentID(),
		Name: f.Name,
		URL:  resp.Data.URL,
		Type: f.ContentType,
		Size: size,
	}, nil
}

// Delete is a no-op: ImgBB only offers deletion through its web page.
func (u *ImgBBUploader) Delete(_ context.Context, _ models.Attachment) error {
	return nil
}
