package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bulletin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertAppErrorCode asserts that err is an AppError carrying code.
func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

type pushRecorder struct {
	sent []*models.Notification
}

func (p *pushRecorder) NotifyAsync(n *models.Notification) { p.sent = append(p.sent, n) }

func TestNotificationService_CreateNotification(t *testing.T) {
	t.Parallel()

	var stored *models.Notification
	repo := &notificationRepoStub{createFn: func(_ context.Context, n *models.Notification) error {
		n.ID = "n1"
		stored = n
		return nil
	}}
	pub := &recordingPublisher{}
	push := &pushRecorder{}
	svc := NewNotificationService(repo, pub, push)

	svc.CreateNotification(context.Background(), NotificationInput{
		RecipientID:    "author",
		Kind:           models.NotificationComment,
		PostID:         "p1",
		PostTitle:      "제목",
		ActorID:        "actor",
		ActorName:      "철수",
		CommentContent: "좋은 글이네요",
	})

	require.NotNil(t, stored)
	assert.Equal(t, "author", stored.UserID)
	assert.Equal(t, "철수님이 회원님의 게시글에 댓글을 달았습니다", stored.Message)
	require.NotNil(t, stored.CommentContent)
	assert.Equal(t, "좋은 글이네요", *stored.CommentContent)
	assert.False(t, stored.IsRead)
	assert.Equal(t, []string{"notifications/author"}, pub.Topics())
	require.Len(t, push.sent, 1)
	assert.Equal(t, "n1", push.sent[0].ID)
}

func TestNotificationService_CreateNotification_SkipsSelfAndEmpty(t *testing.T) {
	t.Parallel()

	called := false
	repo := &notificationRepoStub{createFn: func(context.Context, *models.Notification) error {
		called = true
		return nil
	}}
	pub := &recordingPublisher{}
	svc := NewNotificationService(repo, pub, nil)

	svc.CreateNotification(context.Background(), NotificationInput{RecipientID: "u1", ActorID: "u1", Kind: models.NotificationLike})
	svc.CreateNotification(context.Background(), NotificationInput{RecipientID: "", ActorID: "u1", Kind: models.NotificationLike})

	assert.False(t, called)
	assert.Empty(t, pub.Topics())
}

func TestNotificationService_CreateNotification_SwallowsErrors(t *testing.T) {
	t.Parallel()

	repo := &notificationRepoStub{createFn: func(context.Context, *models.Notification) error {
		return errors.New("db down")
	}}
	pub := &recordingPublisher{}
	push := &pushRecorder{}
	svc := NewNotificationService(repo, pub, push)

	assert.NotPanics(t, func() {
		svc.CreateNotification(context.Background(), NotificationInput{RecipientID: "a", ActorID: "b", Kind: models.NotificationLike})
	})
	assert.Empty(t, pub.Topics())
	assert.Empty(t, push.sent)
}

func TestNotificationService_ListNotifications(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotUnread bool
	repo := &notificationRepoStub{listByUserFn: func(_ context.Context, _ string, unreadOnly bool) ([]*models.Notification, error) {
		gotUnread = unreadOnly
		return []*models.Notification{
			{ID: "old", CreatedAt: base},
			{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
			{ID: "mid", CreatedAt: base.Add(time.Hour)},
		}, nil
	}}
	svc := NewNotificationService(repo, nil, nil)

	list, err := svc.ListNotifications(context.Background(), "u1", FilterUnread)
	require.NoError(t, err)
	assert.True(t, gotUnread)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)

	_, err = svc.ListNotifications(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.False(t, gotUnread)

	_, err = svc.ListNotifications(context.Background(), "u1", "starred")
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	t.Parallel()

	notes := map[string]*models.Notification{
		"mine":   {ID: "mine", UserID: "u1"},
		"read":   {ID: "read", UserID: "u1", IsRead: true},
		"theirs": {ID: "theirs", UserID: "u2"},
	}
	var marked []string
	repo := &notificationRepoStub{
		getByIDFn: func(_ context.Context, id string) (*models.Notification, error) {
			if n, ok := notes[id]; ok {
				return n, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
		markReadFn: func(_ context.Context, id string) error {
			marked = append(marked, id)
			return nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewNotificationService(repo, pub, nil)
	ctx := context.Background()

	require.NoError(t, svc.MarkAsRead(ctx, "u1", "mine"))
	require.NoError(t, svc.MarkAsRead(ctx, "u1", "read"))
	assertAppErrorCode(t, svc.MarkAsRead(ctx, "u1", "theirs"), models.CodeForbidden)
	assertAppErrorCode(t, svc.MarkAsRead(ctx, "u1", "missing"), models.CodeNotFound)

	assert.Equal(t, []string{"mine"}, marked)
	assert.Equal(t, []string{"notifications/u1"}, pub.Topics())
}

func TestNotificationService_DeleteNotification_OwnerOnly(t *testing.T) {
	t.Parallel()

	deleted := false
	repo := &notificationRepoStub{
		getByIDFn: func(context.Context, string) (*models.Notification, error) {
			return &models.Notification{ID: "n1", UserID: "owner"}, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := NewNotificationService(repo, nil, nil)

	assertAppErrorCode(t, svc.DeleteNotification(context.Background(), "intruder", "n1"), models.CodeForbidden)
	assert.False(t, deleted)

	require.NoError(t, svc.DeleteNotification(context.Background(), "owner", "n1"))
	assert.True(t, deleted)
}

func TestNotificationService_BulkOperations(t *testing.T) {
	t.Parallel()

	marked, removed := int64(3), int64(0)
	repo := &notificationRepoStub{
		markAllReadFn: func(context.Context, string) (int64, error) { return marked, nil },
		deleteReadFn:  func(context.Context, string) (int64, error) { return removed, nil },
	}
	pub := &recordingPublisher{}
	svc := NewNotificationService(repo, pub, nil)

	n, err := svc.MarkAllAsRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = svc.DeleteAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Only the call that changed something signals the topic.
	assert.Equal(t, []string{"notifications/u1"}, pub.Topics())
}
