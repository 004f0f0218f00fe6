package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"bulletin/internal/featureflags"
	"bulletin/internal/models"
	"bulletin/internal/realtime"
	"bulletin/internal/repository"
)

// List sizes for the post feed.
const (
	DefaultPostLimit = 20
	MaxPostLimit     = 100
	HomePostLimit    = 50
)

// AttachmentRemover deletes a stored attachment from its host.
type AttachmentRemover interface {
	Delete(ctx context.Context, a models.Attachment) error
}

type PostService struct {
	postRepo  repository.PostRepository
	notifier  Notifier
	storage   AttachmentRemover
	publisher Publisher
	flags     FlagChecker
}

type CreatePostInput struct {
	AuthorID    string
	AuthorName  string
	Title       string
	Content     string
	Tags        []string
	TagsRaw     string
	Category    string
	Attachments []models.Attachment
}

// UpdatePostInput replaces the editable fields of a post. A nil
// KeepAttachmentIDs keeps every existing attachment; otherwise only the listed
// ones survive and NewAttachments are appended.
type UpdatePostInput struct {
	PostID            string
	UserID            string
	Title             string
	Content           string
	Tags              []string
	TagsRaw           string
	Category          string
	KeepAttachmentIDs []string
	NewAttachments    []models.Attachment
}

func NewPostService(
	postRepo repository.PostRepository,
	notifier Notifier,
	storage AttachmentRemover,
	publisher Publisher,
	flags FlagChecker,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		notifier:  notifier,
		storage:   storage,
		publisher: publisherOrNop(publisher),
		flags:     flags,
	}
}

func resolveTags(tags []string, raw string) []string {
	if tags != nil {
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return models.ParseTags(raw)
}

func (s *PostService) publishPost(ctx context.Context, postID string) {
	s.publisher.Publish(ctx, realtime.TopicPosts, realtime.PostTopic(postID))
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	post, err := models.NewPost(in.AuthorID, in.AuthorName, in.Title, in.Content, in.Category,
		resolveTags(in.Tags, in.TagsRaw), in.Attachments)
	if err != nil {
		return nil, err
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	s.publishPost(ctx, post.ID)
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	return post, nil
}

// ViewPost loads a post for its detail page and counts the view. The default
// path writes back the value it read plus one, so concurrent views can be lost.
func (s *PostService) ViewPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if flagEnabled(s.flags, featureflags.AtomicCounters, id) {
		err = s.postRepo.IncrementViewCount(ctx, id)
	} else {
		err = s.postRepo.SetViewCount(ctx, id, post.ViewCount+1)
	}
	if err != nil {
		return nil, err
	}
	post.ViewCount++

	s.publishPost(ctx, id)
	return post, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPostLimit
	case limit > MaxPostLimit:
		return MaxPostLimit
	default:
		return limit
	}
}

// ListPosts returns the newest posts. The category filter runs after the
// fetch, so a filtered page can hold fewer than limit posts.
func (s *PostService) ListPosts(ctx context.Context, limit int, category string) ([]*models.Post, error) {
	posts, err := s.postRepo.List(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Category.MatchesFilter(category) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListPostsByAuthor returns every post of one author, newest first.
func (s *PostService) ListPostsByAuthor(ctx context.Context, authorID string) ([]*models.Post, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *PostService) authored(ctx context.Context, postID, userID, action string) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError("Only the author can " + action + " this post")
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.authored(ctx, in.PostID, in.UserID, "edit")
	if err != nil {
		return nil, err
	}

	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return nil, models.NewValidationError("Unknown category: " + in.Category)
	}

	kept, removed := splitAttachments(post.Attachments, in.KeepAttachmentIDs)
	attachments := append(kept, in.NewAttachments...)

	post.Title = strings.TrimSpace(in.Title)
	post.Content = in.Content
	post.Category = category
	post.Tags = resolveTags(in.Tags, in.TagsRaw)
	post.Attachments = attachments
	if err := post.Validate(); err != nil {
		return nil, err
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	s.removeAttachments(ctx, post.ID, removed)
	s.publishPost(ctx, post.ID)
	return post, nil
}

func splitAttachments(existing []models.Attachment, keepIDs []string) (kept, removed []models.Attachment) {
	kept = make([]models.Attachment, 0, len(existing))
	if keepIDs == nil {
		return append(kept, existing...), nil
	}
	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	for _, a := range existing {
		if _, ok := keep[a.ID]; ok {
			kept = append(kept, a)
		} else {
			removed = append(removed, a)
		}
	}
	return kept, removed
}

// removeAttachments deletes dropped files from storage. Failures are logged only.
func (s *PostService) removeAttachments(ctx context.Context, postID string, removed []models.Attachment) {
	if s.storage == nil {
		return
	}
	for _, a := range removed {
		if err := s.storage.Delete(ctx, a); err != nil {
			slog.WarnContext(ctx, "failed to delete attachment from storage",
				slog.String("post_id", postID),
				slog.String("attachment_id", a.ID),
				slog.String("url", a.URL),
				slog.String("error", err.Error()))
		}
	}
}

// DeletePost removes the post and its likes. Comments and notifications
// pointing at it stay behind.
func (s *PostService) DeletePost(ctx context.Context, postID, userID string) error {
	if _, err := s.authored(ctx, postID, userID, "delete"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return notFound(err, "Post", postID)
	}
	s.publishPost(ctx, postID)
	return nil
}

// LikePost adds userID to the post's likes and notifies the author the first
// time. Liking twice is a no-op.
func (s *PostService) LikePost(ctx context.Context, postID, userID, userName string) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.like(ctx, post, userID, userName)
}

func (s *PostService) like(ctx context.Context, post *models.Post, userID, userName string) (*models.Post, error) {
	if post.HasLiked(userID) {
		return post, nil
	}
	if err := s.postRepo.AddLike(ctx, post.ID, userID); err != nil {
		return nil, err
	}
	post.Likes = append(post.Likes, userID)

	if s.notifier != nil {
		s.notifier.CreateNotification(ctx, NotificationInput{
			RecipientID: post.AuthorID,
			Kind:        models.NotificationLike,
			PostID:      post.ID,
			PostTitle:   post.Title,
			ActorID:     userID,
			ActorName:   userName,
		})
	}
	s.publishPost(ctx, post.ID)
	return post, nil
}

// UnlikePost removes userID from the likes. It never notifies anyone.
func (s *PostService) UnlikePost(ctx context.Context, postID, userID string) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.unlike(ctx, post, userID)
}

func (s *PostService) unlike(ctx context.Context, post *models.Post, userID string) (*models.Post, error) {
	if err := s.postRepo.RemoveLike(ctx, post.ID, userID); err != nil {
		return nil, err
	}
	likes := make([]string, 0, len(post.Likes))
	for _, id := range post.Likes {
		if id != userID {
			likes = append(likes, id)
		}
	}
	post.Likes = likes
	s.publishPost(ctx, post.ID)
	return post, nil
}

// ToggleLike reads the current membership and applies the opposite mutation.
// It reports whether the user likes the post afterwards.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID, userName string) (*models.Post, bool, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if post.HasLiked(userID) {
		post, err = s.unlike(ctx, post, userID)
		return post, false, err
	}
	post, err = s.like(ctx, post, userID, userName)
	return post, true, err
}
