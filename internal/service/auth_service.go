package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bulletin/internal/middleware"
	"bulletin/internal/models"
	"bulletin/internal/repository"
	"bulletin/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// WSTicketTTL is how long a websocket ticket stays redeemable.
const WSTicketTTL = 60 * time.Second

// LoginLimiter throttles sign-in attempts.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type AuthService struct {
	users   repository.UserRepository
	secret  []byte
	rdb     *redis.Client
	limiter LoginLimiter
	now     func() time.Time
}

type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// AuthResult is returned by sign-up and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, jwtSecret string, rdb *redis.Client, limiter LoginLimiter) *AuthService {
	return &AuthService{
		users:   users,
		secret:  []byte(jwtSecret),
		rdb:     rdb,
		limiter: limiter,
		now:     time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)

	if err := validation.ValidatePasswordConfirmation(in.Password, in.ConfirmPassword); err != nil {
		return nil, models.NewAuthError(models.AuthPasswordMismatch, err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewAuthError(models.AuthWeakPassword, err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewAuthError(models.AuthInvalidEmail, err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName != "" {
		if err := validation.ValidateDisplayName(displayName); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewAuthError(models.AuthSignupFailed, err)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewAuthError(models.AuthEmailAlreadyInUse, err)
		}
		return nil, models.NewAuthError(models.AuthSignupFailed, err)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewAuthError(models.AuthSignupFailed, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewAuthError(models.AuthInvalidEmail, err)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, strings.ToLower(email))
		if err != nil {
			return nil, models.NewAuthError(models.AuthLoginFailed, err)
		}
		if !allowed {
			return nil, models.NewAuthError(models.AuthTooManyRequests, nil)
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewAuthError(models.AuthUserNotFound, nil)
		}
		return nil, models.NewAuthError(models.AuthLoginFailed, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.NewAuthError(models.AuthWrongPassword, nil)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewAuthError(models.AuthLoginFailed, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// IssueToken signs a session token for uid.
func (s *AuthService) IssueToken(uid string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		Issuer:    middleware.TokenIssuer,
		Audience:  jwt.ClaimStrings{middleware.TokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(middleware.TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Logout revokes the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, jti string, exp time.Time) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, middleware.BlacklistKey(jti), "1", ttl).Err()
}

// CurrentUser loads the account behind a uid.
func (s *AuthService) CurrentUser(ctx context.Context, uid string) (*models.User, error) {
	return s.users.GetByID(ctx, uid)
}

func (s *AuthService) UpdateProfile(ctx context.Context, uid, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.users.UpdateDisplayName(ctx, uid, displayName); err != nil {
		return nil, notFound(err, "User", uid)
	}
	return s.users.GetByID(ctx, uid)
}

// IssueWSTicket stores a single-use websocket ticket for uid.
func (s *AuthService) IssueWSTicket(ctx context.Context, uid string) (string, error) {
	if s.rdb == nil {
		return "", errors.New("websocket tickets require redis")
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, middleware.WSTicketKey(ticket), uid, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}
