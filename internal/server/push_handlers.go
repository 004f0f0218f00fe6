package server

import (
	"bulletin/internal/middleware"
	"bulletin/internal/service"

	"github.com/gofiber/fiber/v2"
)

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// GetVAPIDKey handles GET /api/push/vapid-key
// @Summary Web push public key
// @Tags push
// @Produce json
// @Success 200 {object} object{publicKey=string,enabled=bool}
// @Router /push/vapid-key [get]
func (s *Server) GetVAPIDKey(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"publicKey": s.pushService.PublicKey(),
		"enabled":   s.pushService.Enabled(),
	})
}

// SubscribePush handles POST /api/push/subscriptions
// @Summary Register a browser push subscription
// @Tags push
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body pushSubscriptionRequest true "PushSubscription.toJSON()"
// @Success 201 {object} models.PushSubscription
// @Failure 400 {object} models.ErrorResponse
// @Router /push/subscriptions [post]
func (s *Server) SubscribePush(c *fiber.Ctx) error {
	var req pushSubscriptionRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	sub, err := s.pushService.Subscribe(c.UserContext(), service.PushSubscriptionInput{
		UserID:   middleware.UserID(c),
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// UnsubscribePush handles DELETE /api/push/subscriptions
func (s *Server) UnsubscribePush(c *fiber.Ctx) error {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.pushService.Unsubscribe(c.UserContext(), middleware.UserID(c), req.Endpoint); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
