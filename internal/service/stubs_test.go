package service

import (
	"context"
	"sync"
	"time"

	"bulletin/internal/models"
)

// postRepoStub is a stub for repository.PostRepository. Unset funcs succeed with zero values.
type postRepoStub struct {
	createFn                func(context.Context, *models.Post) error
	getByIDFn               func(context.Context, string) (*models.Post, error)
	listFn                  func(context.Context, int) ([]*models.Post, error)
	listByAuthorFn          func(context.Context, string) ([]*models.Post, error)
	updateFn                func(context.Context, *models.Post) error
	deleteFn                func(context.Context, string) error
	setViewCountFn          func(context.Context, string, int) error
	incrementViewCountFn    func(context.Context, string) error
	setCommentCountFn       func(context.Context, string, int) error
	incrementCommentCountFn func(context.Context, string) error
	addLikeFn               func(context.Context, string, string) error
	removeLikeFn            func(context.Context, string, string) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit int) ([]*models.Post, error) {
	return s.listFn(ctx, limit)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) SetViewCount(ctx context.Context, id string, count int) error {
	if s.setViewCountFn == nil {
		return nil
	}
	return s.setViewCountFn(ctx, id, count)
}
func (s *postRepoStub) IncrementViewCount(ctx context.Context, id string) error {
	if s.incrementViewCountFn == nil {
		return nil
	}
	return s.incrementViewCountFn(ctx, id)
}
func (s *postRepoStub) SetCommentCount(ctx context.Context, id string, count int) error {
	if s.setCommentCountFn == nil {
		return nil
	}
	return s.setCommentCountFn(ctx, id, count)
}
func (s *postRepoStub) IncrementCommentCount(ctx context.Context, id string) error {
	if s.incrementCommentCountFn == nil {
		return nil
	}
	return s.incrementCommentCountFn(ctx, id)
}
func (s *postRepoStub) AddLike(ctx context.Context, postID, userID string) error {
	if s.addLikeFn == nil {
		return nil
	}
	return s.addLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) RemoveLike(ctx context.Context, postID, userID string) error {
	if s.removeLikeFn == nil {
		return nil
	}
	return s.removeLikeFn(ctx, postID, userID)
}

type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, string) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	if s.listByPostFn == nil {
		return nil, nil
	}
	return s.listByPostFn(ctx, postID)
}

type notificationRepoStub struct {
	createFn      func(context.Context, *models.Notification) error
	getByIDFn     func(context.Context, string) (*models.Notification, error)
	listByUserFn  func(context.Context, string, bool) ([]*models.Notification, error)
	countUnreadFn func(context.Context, string) (int64, error)
	markReadFn    func(context.Context, string) error
	deleteFn      func(context.Context, string) error
	markAllReadFn func(context.Context, string) (int64, error)
	deleteReadFn  func(context.Context, string) (int64, error)
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, n)
}
func (s *notificationRepoStub) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return s.getByIDFn(ctx, id)
}
func (s *notificationRepoStub) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	return s.listByUserFn(ctx, userID, unreadOnly)
}
func (s *notificationRepoStub) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.countUnreadFn(ctx, userID)
}
func (s *notificationRepoStub) MarkRead(ctx context.Context, id string) error {
	if s.markReadFn == nil {
		return nil
	}
	return s.markReadFn(ctx, id)
}
func (s *notificationRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.markAllReadFn(ctx, userID)
}
func (s *notificationRepoStub) DeleteRead(ctx context.Context, userID string) (int64, error) {
	return s.deleteReadFn(ctx, userID)
}

type chatRepoStub struct {
	createRoomFn         func(context.Context, *models.ChatRoom) error
	createRoomIfAbsentFn func(context.Context, *models.ChatRoom) (bool, error)
	getRoomFn            func(context.Context, string) (*models.ChatRoom, error)
	listRoomsForUserFn   func(context.Context, string) ([]*models.ChatRoom, error)
	createMessageFn      func(context.Context, *models.ChatMessage) error
	listMessagesFn       func(context.Context, string) ([]*models.ChatMessage, error)
	updateLastMessageFn  func(context.Context, string, string, time.Time) error
	setUnreadFn          func(context.Context, string, string, int) error
	incrementUnreadFn    func(context.Context, string, string) error
}

func (s *chatRepoStub) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return s.createRoomFn(ctx, room)
}
func (s *chatRepoStub) CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) (bool, error) {
	return s.createRoomIfAbsentFn(ctx, room)
}
func (s *chatRepoStub) GetRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	return s.getRoomFn(ctx, id)
}
func (s *chatRepoStub) ListRoomsForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	return s.listRoomsForUserFn(ctx, userID)
}
func (s *chatRepoStub) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if s.createMessageFn == nil {
		return nil
	}
	return s.createMessageFn(ctx, msg)
}
func (s *chatRepoStub) ListMessages(ctx context.Context, roomID string) ([]*models.ChatMessage, error) {
	return s.listMessagesFn(ctx, roomID)
}
func (s *chatRepoStub) UpdateLastMessage(ctx context.Context, roomID, content string, at time.Time) error {
	if s.updateLastMessageFn == nil {
		return nil
	}
	return s.updateLastMessageFn(ctx, roomID, content, at)
}
func (s *chatRepoStub) SetUnread(ctx context.Context, roomID, userID string, count int) error {
	if s.setUnreadFn == nil {
		return nil
	}
	return s.setUnreadFn(ctx, roomID, userID, count)
}
func (s *chatRepoStub) IncrementUnread(ctx context.Context, roomID, userID string) error {
	if s.incrementUnreadFn == nil {
		return nil
	}
	return s.incrementUnreadFn(ctx, roomID, userID)
}

type globalChatRepoStub struct {
	createFn     func(context.Context, *models.GlobalChatMessage) error
	listLatestFn func(context.Context, int) ([]*models.GlobalChatMessage, error)
}

func (s *globalChatRepoStub) Create(ctx context.Context, m *models.GlobalChatMessage) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, m)
}
func (s *globalChatRepoStub) ListLatest(ctx context.Context, limit int) ([]*models.GlobalChatMessage, error) {
	return s.listLatestFn(ctx, limit)
}

type userRepoStub struct {
	createFn            func(context.Context, *models.User) error
	getByIDFn           func(context.Context, string) (*models.User, error)
	getByEmailFn        func(context.Context, string) (*models.User, error)
	updateDisplayNameFn func(context.Context, string, string) error
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, u)
}
func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) UpdateDisplayName(ctx context.Context, id, name string) error {
	if s.updateDisplayNameFn == nil {
		return nil
	}
	return s.updateDisplayNameFn(ctx, id, name)
}

// recordingPublisher remembers every published topic.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topics...)
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type recordingNotifier struct {
	inputs []NotificationInput
}

func (n *recordingNotifier) CreateNotification(_ context.Context, in NotificationInput) {
	n.inputs = append(n.inputs, in)
}

// flagSet turns on the named flags for every subject.
type flagSet map[string]bool

func (f flagSet) Enabled(name, _ string) bool { return f[name] }
