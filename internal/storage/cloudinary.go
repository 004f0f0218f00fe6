package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"bulletin/internal/models"
	"bulletin/internal/observability"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryFolder = "posts"

// CloudinaryUploader keeps attachments in Cloudinary, the platform object store.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
	now func() time.Time
}

func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("%w: CLOUDINARY_URL is empty", ErrNotConfigured)
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return &CloudinaryUploader{cld: cld, now: time.Now}, nil
}

func (u *CloudinaryUploader) Name() string { return "cloudinary" }

// ObjectName is the public id an upload is stored under: posts/{unixMillis}_{name}.
func ObjectName(name string, at time.Time) string {
	return fmt.Sprintf("%s/%d_%s", cloudinaryFolder, at.UnixMilli(), name)
}

func (u *CloudinaryUploader) Upload(ctx context.Context, f File) (att models.Attachment, err error) {
	ctx, span := observability.StartClientSpan(ctx, "cloudinary", "upload")
	defer func() { observability.EndSpan(span, err) }()

	params := uploader.UploadParams{
		PublicID:     ObjectName(f.Name, u.now()),
		ResourceType: "auto",
	}
	res, err := u.cld.Upload.Upload(ctx, f.Body, params)
	if err != nil {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: err}
	}
	if res.Error.Message != "" {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: fmt.Errorf("%w: %s", ErrProviderRejected, res.Error.Message)}
	}
	if res.SecureURL == "" {
		return models.Attachment{}, &UploadError{Name: f.Name, Err: fmt.Errorf("%w: empty url", ErrProviderRejected)}
	}

	size := f.Size
	if size <= 0 {
		size = int64(res.Bytes)
	}
	observability.UploadBytes.WithLabelValues(u.Name()).Observe(float64(size))

	return models.Attachment{
		ID:   NewAttachmentID(),
		Name: f.Name,
		URL:  res.SecureURL,
		Type: f.ContentType,
		Size: size,
	}, nil
}

func (u *CloudinaryUploader) Delete(ctx context.Context, a models.Attachment) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "cloudinary", "destroy")
	defer func() { observability.EndSpan(span, err) }()

	resourceType, publicID, ok := PublicIDFromURL(a.URL)
	if !ok {
		return fmt.Errorf("not a cloudinary url: %s", a.URL)
	}
	res, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return errors.New(res.Error.Message)
	}
	return nil
}

// PublicIDFromURL recovers the resource type and public id from a delivery URL
// such as https://res.cloudinary.com/demo/image/upload/v17/posts/1_cat.png.
func PublicIDFromURL(raw string) (resourceType, publicID string, ok bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	uploadAt := -1
	for i, s := range segments {
		if s == "upload" && i >= 1 {
			uploadAt = i
			break
		}
	}
	if uploadAt < 0 || uploadAt+1 >= len(segments) {
		return "", "", false
	}
	resourceType = segments[uploadAt-1]

	rest := segments[uploadAt+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	publicID = strings.Join(rest, "/")
	// Raw files keep their extension as part of the public id.
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	return resourceType, publicID, publicID != ""
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
