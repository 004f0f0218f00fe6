// Package middleware provides authentication, logging, rate limiting, tracing
// and metrics middleware for the application.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bulletin/internal/config"
	"bulletin/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "bulletin-api"
	TokenAudience = "bulletin-app"
	TokenTTL      = 7 * 24 * time.Hour
)

var (
	cfg *config.Config
	rdb *redis.Client
)

// InitMiddleware initializes authentication middleware with the given config.
// rdb may be nil, in which case revoked tokens are not checked.
func InitMiddleware(c *config.Config, client *redis.Client) {
	cfg = c
	rdb = client
}

// BlacklistKey is the Redis key marking a revoked token id.
func BlacklistKey(jti string) string {
	return "jwt:blacklist:" + jti
}

// WSTicketKey is the Redis key of a one-shot websocket ticket.
func WSTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// ParseToken validates signature, expiry, issuer and audience and returns the claims.
func ParseToken(tokenString string) (*jwt.RegisteredClaims, error) {
	if cfg == nil {
		return nil, errors.New("auth middleware not initialized")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func isRevoked(ctx context.Context, jti string) bool {
	if rdb == nil || jti == "" {
		return false
	}
	n, err := rdb.Exists(ctx, BlacklistKey(jti)).Result()
	if err != nil {
		// Redis outage must not log everybody out.
		Logger.WarnContext(ctx, "token blacklist lookup failed", "error", err)
		return false
	}
	return n > 0
}

func unauthorized(c *fiber.Ctx, reason string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized,
		models.NewAuthError(models.AuthInvalidToken, errors.New(reason)))
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header required")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}

func authenticate(c *fiber.Ctx, tokenString string) error {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return unauthorized(c, "invalid or expired token")
	}
	if isRevoked(c.UserContext(), claims.ID) {
		return unauthorized(c, "token revoked")
	}

	c.Locals("userID", claims.Subject)
	c.Locals("jti", claims.ID)
	if claims.ExpiresAt != nil {
		c.Locals("tokenExp", claims.ExpiresAt.Time)
	}
	c.SetUserContext(WithUserID(c.UserContext(), claims.Subject))
	return c.Next()
}

// AuthRequired is a middleware that enforces authentication for protected routes.
// On success c.Locals("userID") holds the uid string.
func AuthRequired(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}
	return authenticate(c, token)
}

// WebSocketAuthRequired authenticates websocket upgrades. A one-shot ?ticket=
// issued by the ticket endpoint is preferred; a bearer header or ?token= also work.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	if ticket := c.Query("ticket"); ticket != "" {
		if rdb == nil {
			return unauthorized(c, "tickets unavailable")
		}
		userID, err := rdb.GetDel(c.UserContext(), WSTicketKey(ticket)).Result()
		if err != nil || userID == "" {
			return unauthorized(c, "invalid or expired ticket")
		}
		c.Locals("userID", userID)
		c.SetUserContext(WithUserID(c.UserContext(), userID))
		return c.Next()
	}

	token := c.Query("token")
	if token == "" {
		var err error
		if token, err = bearerToken(c); err != nil {
			return unauthorized(c, err.Error())
		}
	}
	return authenticate(c, token)
}

// UserID returns the authenticated uid stored by AuthRequired.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}
