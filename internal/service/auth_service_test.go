package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bulletin/internal/middleware"
	"bulletin/internal/models"
	"bulletin/internal/repository"
	"bulletin/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

type limiterStub struct {
	allowed bool
	err     error
	keys    []string
}

func (l *limiterStub) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

func assertAuthCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %T: %v", err, err)
	assert.Equal(t, code, authErr.Code)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	return testutil.NewRedis(t)
}

func parseTestToken(t *testing.T, token string) *jwt.RegisteredClaims {
	t.Helper()
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithIssuer(middleware.TokenIssuer), jwt.WithAudience(middleware.TokenAudience))
	require.NoError(t, err)
	return claims
}

func TestAuthService_Signup(t *testing.T) {
	t.Parallel()

	var created *models.User
	users := &userRepoStub{createFn: func(_ context.Context, u *models.User) error {
		u.ID = "uid-1"
		created = u
		return nil
	}}
	svc := NewAuthService(users, testSecret, nil, nil)

	res, err := svc.Signup(context.Background(), SignupInput{
		Email: " new@example.com ", Password: "secret1", ConfirmPassword: "secret1", DisplayName: " 새 회원 ",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "새 회원", created.DisplayName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")))
	assert.Equal(t, "uid-1", res.User.ID)

	claims := parseTestToken(t, res.Token)
	assert.Equal(t, "uid-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(middleware.TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestAuthService_Signup_Errors(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(&userRepoStub{}, testSecret, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input SignupInput
		code  string
	}{
		{name: "mismatch wins over weak", input: SignupInput{Email: "a@b.co", Password: "123", ConfirmPassword: "124"}, code: models.AuthPasswordMismatch},
		{name: "weak password", input: SignupInput{Email: "a@b.co", Password: "12345", ConfirmPassword: "12345"}, code: models.AuthWeakPassword},
		{name: "bad email", input: SignupInput{Email: "not-an-email", Password: "123456", ConfirmPassword: "123456"}, code: models.AuthInvalidEmail},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Signup(ctx, tc.input)
			assertAuthCode(t, err, tc.code)
		})
	}
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	t.Parallel()

	users := &userRepoStub{createFn: func(context.Context, *models.User) error {
		return repository.ErrDuplicate
	}}
	svc := NewAuthService(users, testSecret, nil, nil)

	_, err := svc.Signup(context.Background(), SignupInput{Email: "dup@example.com", Password: "123456", ConfirmPassword: "123456"})
	assertAuthCode(t, err, models.AuthEmailAlreadyInUse)
	assert.Equal(t, 409, models.StatusFor(err))
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &userRepoStub{getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
		if email != "known@example.com" {
			return nil, gorm.ErrRecordNotFound
		}
		return &models.User{ID: "uid-9", Email: email, PasswordHash: string(hash)}, nil
	}}
	limiter := &limiterStub{allowed: true}
	svc := NewAuthService(users, testSecret, nil, limiter)
	ctx := context.Background()

	res, err := svc.Login(ctx, " nobody@example.com ", "correct-horse")
	assertAuthCode(t, err, models.AuthUserNotFound)
	assert.Nil(t, res)

	res, err = svc.Login(ctx, "known@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "uid-9", parseTestToken(t, res.Token).Subject)

	_, err = svc.Login(ctx, "known@example.com", "wrong")
	assertAuthCode(t, err, models.AuthWrongPassword)

	_, err = svc.Login(ctx, "bad", "x")
	assertAuthCode(t, err, models.AuthInvalidEmail)

	assert.Equal(t, []string{"nobody@example.com", "known@example.com", "known@example.com"}, limiter.keys)
}

func TestAuthService_Login_Throttled(t *testing.T) {
	t.Parallel()

	users := &userRepoStub{getByEmailFn: func(context.Context, string) (*models.User, error) {
		t.Fatal("lookup must not run when throttled")
		return nil, nil
	}}
	svc := NewAuthService(users, testSecret, nil, &limiterStub{allowed: false})

	_, err := svc.Login(context.Background(), "a@example.com", "whatever")
	assertAuthCode(t, err, models.AuthTooManyRequests)
	assert.Equal(t, 429, models.StatusFor(err))
}

func TestAuthService_Logout_BlacklistsUntilExpiry(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	svc := NewAuthService(&userRepoStub{}, testSecret, client, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, "jti-1", now.Add(time.Hour)))
	assert.True(t, mr.Exists(middleware.BlacklistKey("jti-1")))
	assert.Equal(t, time.Hour, mr.TTL(middleware.BlacklistKey("jti-1")))

	require.NoError(t, svc.Logout(ctx, "jti-2", now.Add(-time.Minute)))
	assert.False(t, mr.Exists(middleware.BlacklistKey("jti-2")))
}

func TestAuthService_IssueWSTicket(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	svc := NewAuthService(&userRepoStub{}, testSecret, client, nil)

	ticket, err := svc.IssueWSTicket(context.Background(), "uid-3")
	require.NoError(t, err)

	got, err := mr.Get(middleware.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, "uid-3", got)
	assert.Equal(t, WSTicketTTL, mr.TTL(middleware.WSTicketKey(ticket)))

	_, err = NewAuthService(&userRepoStub{}, testSecret, nil, nil).IssueWSTicket(context.Background(), "uid-3")
	assert.Error(t, err)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	t.Parallel()

	name := "old"
	users := &userRepoStub{
		updateDisplayNameFn: func(_ context.Context, _ string, n string) error {
			name = n
			return nil
		},
		getByIDFn: func(_ context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, DisplayName: name}, nil
		},
	}
	svc := NewAuthService(users, testSecret, nil, nil)

	u, err := svc.UpdateProfile(context.Background(), "uid-1", "  새 이름 ")
	require.NoError(t, err)
	assert.Equal(t, "새 이름", u.DisplayName)

	_, err = svc.UpdateProfile(context.Background(), "uid-1", " ")
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestAuthService_IssueToken_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewAuthService(&userRepoStub{}, "", nil, nil).IssueToken("uid")
	assert.Error(t, err)
}
