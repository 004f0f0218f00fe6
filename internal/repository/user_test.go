package repository

import (
	"context"
	"errors"
	"testing"

	"bulletin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	u := &models.User{Email: " Alice@Example.com ", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, "alice@example.com", u.Email)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Name())

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = repo.GetByID(ctx, "missing")
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "a@b.com", PasswordHash: "x"}))
	err := repo.Create(ctx, &models.User{Email: "A@B.com", PasswordHash: "y"})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestUserRepository_UpdateDisplayName(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	u := &models.User{Email: "a@b.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.UpdateDisplayName(ctx, u.ID, "Alice"))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name())

	assert.True(t, errors.Is(repo.UpdateDisplayName(ctx, "missing", "x"), gorm.ErrRecordNotFound))
}

func TestPushSubscriptionRepository_Upsert(t *testing.T) {
	repo := NewPushSubscriptionRepository(setupTestDB(t))
	ctx := context.Background()

	sub := &models.PushSubscription{UserID: "u1", Endpoint: "https://push.example/1", P256dh: "k1", Auth: "a1"}
	require.NoError(t, repo.Upsert(ctx, sub))
	require.NoError(t, repo.Upsert(ctx, &models.PushSubscription{UserID: "u2", Endpoint: "https://push.example/1", P256dh: "k2", Auth: "a2"}))

	subs, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = repo.ListByUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256dh)

	require.NoError(t, repo.DeleteForUser(ctx, "u1", "https://push.example/1"))
	subs, _ = repo.ListByUser(ctx, "u2")
	assert.Len(t, subs, 1, "only the owner can remove a subscription")

	require.NoError(t, repo.DeleteByEndpoint(ctx, "https://push.example/1"))
	subs, _ = repo.ListByUser(ctx, "u2")
	assert.Empty(t, subs)
}
