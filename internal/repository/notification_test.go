package repository

import (
	"context"
	"testing"

	"bulletin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotification(t *testing.T, repo NotificationRepository, userID string, read bool) *models.Notification {
	t.Helper()
	n := &models.Notification{
		UserID:    userID,
		Type:      models.NotificationLike,
		PostID:    "p1",
		PostTitle: "title",
		ActorID:   "actor",
		ActorName: "Actor",
		Message:   models.NotificationMessage(models.NotificationLike, "Actor"),
	}
	require.NoError(t, repo.Create(context.Background(), n))
	if read {
		require.NoError(t, repo.MarkRead(context.Background(), n.ID))
	}
	return n
}

func TestNotificationRepository_ListAndCount(t *testing.T) {
	repo := NewNotificationRepository(setupTestDB(t))
	ctx := context.Background()

	seedNotification(t, repo, "u1", false)
	seedNotification(t, repo, "u1", true)
	seedNotification(t, repo, "u2", false)

	all, err := repo.ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Nil(t, all[0].CommentContent)

	unread, err := repo.ListByUser(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.False(t, unread[0].IsRead)

	n, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNotificationRepository_BulkOperations(t *testing.T) {
	repo := NewNotificationRepository(setupTestDB(t))
	ctx := context.Background()

	seedNotification(t, repo, "u1", false)
	seedNotification(t, repo, "u1", false)
	seedNotification(t, repo, "u1", true)
	other := seedNotification(t, repo, "u2", true)

	affected, err := repo.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	deleted, err := repo.DeleteRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = repo.GetByID(ctx, other.ID)
	assert.NoError(t, err, "other users' notifications are untouched")

	require.NoError(t, repo.Delete(ctx, other.ID))
	_, err = repo.GetByID(ctx, other.ID)
	assert.Error(t, err)
}
