package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bulletin/internal/config"
	"bulletin/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(uid string, exp time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   uid,
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		ID:        "jti-" + uid,
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAuthRequired(t *testing.T) {
	client := setupRedis(t)
	InitMiddleware(&config.Config{JWTSecret: testSecret}, client)

	app := fiber.New()
	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserID(c)})
	})

	require.NoError(t, client.Set(context.Background(), BlacklistKey("jti-revoked"), "1", time.Hour).Err())

	wrongAudience := validClaims("u1", time.Hour)
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}

	revoked := validClaims("u1", time.Hour)
	revoked.ID = "jti-revoked"

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID string
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signToken(t, validClaims("user-123", time.Hour)),
			expectedStatus: http.StatusOK,
			expectedUserID: "user-123",
		},
		{name: "Missing Header", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Format", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "Malformed Token", authHeader: "Bearer malformed.token.here", expectedStatus: http.StatusUnauthorized},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signToken(t, validClaims("u1", -time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Audience",
			authHeader:     "Bearer " + signToken(t, wrongAudience),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Revoked Token",
			authHeader:     "Bearer " + signToken(t, revoked),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedUserID, body["userID"])
			} else {
				assert.Equal(t, models.AuthInvalidToken, body["code"])
				assert.Equal(t, "로그인이 필요합니다.", body["error"])
			}
		})
	}
}

func TestWebSocketAuthRequired(t *testing.T) {
	client := setupRedis(t)
	InitMiddleware(&config.Config{JWTSecret: testSecret}, client)

	app := fiber.New()
	app.Get("/ws-test", WebSocketAuthRequired, func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	require.NoError(t, client.Set(context.Background(), WSTicketKey("tk1"), "user-9", time.Minute).Err())

	tests := []struct {
		name           string
		query          string
		authHeader     string
		expectedStatus int
	}{
		{name: "Token via Query Param", query: "?token=" + signToken(t, validClaims("u1", time.Hour)), expectedStatus: http.StatusOK},
		{name: "Token via Header", authHeader: "Bearer " + signToken(t, validClaims("u1", time.Hour)), expectedStatus: http.StatusOK},
		{name: "Ticket", query: "?ticket=tk1", expectedStatus: http.StatusOK},
		{name: "Ticket Is Single Use", query: "?ticket=tk1", expectedStatus: http.StatusUnauthorized},
		{name: "Missing Token", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Token", query: "?token=invalid-token", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws-test"+tt.query, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	InitMiddleware(&config.Config{JWTSecret: testSecret}, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("u1", time.Hour))
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(s)
	assert.Error(t, err)
}
