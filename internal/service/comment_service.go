package service

import (
	"context"

	"bulletin/internal/featureflags"
	"bulletin/internal/models"
	"bulletin/internal/realtime"
	"bulletin/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    Notifier
	publisher   Publisher
	flags       FlagChecker
}

type CreateCommentInput struct {
	PostID     string
	AuthorID   string
	AuthorName string
	Content    string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier Notifier,
	publisher Publisher,
	flags FlagChecker,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
		publisher:   publisherOrNop(publisher),
		flags:       flags,
	}
}

// CreateComment adds a comment and recounts the post. The count written is
// the number of comments read before the insert plus one; two concurrent
// comments can both write the same count.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, notFound(err, "Post", in.PostID)
	}

	comment, err := models.NewComment(in.PostID, in.AuthorID, in.AuthorName, in.Content)
	if err != nil {
		return nil, err
	}

	existing, err := s.commentRepo.ListByPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if flagEnabled(s.flags, featureflags.AtomicCounters, in.PostID) {
		err = s.postRepo.IncrementCommentCount(ctx, in.PostID)
	} else {
		err = s.postRepo.SetCommentCount(ctx, in.PostID, len(existing)+1)
	}
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.CreateNotification(ctx, NotificationInput{
			RecipientID:    post.AuthorID,
			Kind:           models.NotificationComment,
			PostID:         post.ID,
			PostTitle:      post.Title,
			ActorID:        in.AuthorID,
			ActorName:      in.AuthorName,
			CommentContent: comment.Content,
		})
	}

	s.publisher.Publish(ctx,
		realtime.PostCommentsTopic(in.PostID),
		realtime.PostTopic(in.PostID),
		realtime.TopicPosts,
	)
	return comment, nil
}

// ListComments returns a post's comments, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}
