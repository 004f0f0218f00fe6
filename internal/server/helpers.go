package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bulletin/internal/cache"
	"bulletin/internal/middleware"
	"bulletin/internal/models"
	"bulletin/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respond writes err with the status its type maps to. Errors without an
// application code are logged and answered with a generic 500, except upload
// provider failures, which clients show verbatim.
func respond(c *fiber.Ctx, err error) error {
	var upErr *storage.UploadError
	switch {
	case errors.As(err, &upErr):
		return models.RespondWithError(c, fiber.StatusBadGateway, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return models.RespondWithError(c, fiber.StatusServiceUnavailable, err)
	}

	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))

		var appErr *models.AppError
		var authErr *models.AuthError
		if !errors.As(err, &appErr) && !errors.As(err, &authErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// parseBody decodes the request body into dst, answering 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// param returns a non-blank route parameter or answers 400.
func param(c *fiber.Ctx, name string) (string, error) {
	v := strings.TrimSpace(c.Params(name))
	if v == "" {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+name))
		return "", errResponseWritten
	}
	return v, nil
}

// currentUser loads the authenticated account, cached briefly in Redis.
func (s *Server) currentUser(c *fiber.Ctx) (*models.User, error) {
	uid := middleware.UserID(c)
	if uid == "" {
		return nil, models.NewAuthError(models.AuthInvalidToken, nil)
	}
	user, err := cache.Aside(c.UserContext(), cache.UserKey(uid), cache.UserTTL, func(ctx context.Context) (*models.User, error) {
		return s.authService.CurrentUser(ctx, uid)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewAuthError(models.AuthInvalidToken, err)
		}
		return nil, err
	}
	return user, nil
}
