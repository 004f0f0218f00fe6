package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"bulletin/internal/cache"
	"bulletin/internal/config"
	"bulletin/internal/models"
	"bulletin/internal/service"
	"bulletin/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "password123"

type testEnv struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

// newTestEnv wires a full server over sqlite and miniredis.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr, rdb := testutil.NewRedis(t)

	cfg := &config.Config{
		JWTSecret:      "test-secret",
		Env:            "test",
		MaxUploadBytes: 1 << 20,
	}
	for _, m := range mutate {
		m(cfg)
	}

	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	app := NewApp()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	t.Cleanup(func() { _ = srv.hub.Shutdown(context.Background()) })

	return &testEnv{t: t, srv: srv, app: app, db: db, mr: mr, rdb: rdb}
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// signup registers an account through the API and returns its token and profile.
func (e *testEnv) signup(email, name string) (string, *models.User) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"email":           email,
		"password":        testPassword,
		"confirmPassword": testPassword,
		"displayName":     name,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	res := decode[service.AuthResult](e.t, resp)
	require.NotEmpty(e.t, res.Token)
	return res.Token, res.User
}

func (e *testEnv) createPost(token, title string) *models.Post {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/posts", token, fiber.Map{
		"title":    title,
		"content":  "본문",
		"category": "개발",
		"tagsText": "go, fiber",
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return decode[*models.Post](e.t, resp)
}

func urlEscape(s string) string { return url.QueryEscape(s) }
