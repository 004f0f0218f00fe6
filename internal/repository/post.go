package repository

import (
	"context"
	"time"

	"bulletin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, limit int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	SetViewCount(ctx context.Context, id string, count int) error
	IncrementViewCount(ctx context.Context, id string) error
	SetCommentCount(ctx context.Context, id string, count int) error
	IncrementCommentCount(ctx context.Context, id string) error
	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = newID()
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	if err := r.hydrateLikes(ctx, r.db, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit int) ([]*models.Post, error) {
	db := readDB(r.db)
	var posts []*models.Post
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	if err := r.hydrateLikes(ctx, db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByAuthor returns the author's posts in storage order; callers sort.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error) {
	db := readDB(r.db)
	var posts []*models.Post
	if err := db.WithContext(ctx).Where("author_id = ?", authorID).Find(&posts).Error; err != nil {
		return nil, err
	}
	if err := r.hydrateLikes(ctx, db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Update writes the editable fields and refreshes updated_at.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", post.ID).
		Select("title", "content", "category", "tags", "attachments", "updated_at").
		Updates(post).Error
}

// Delete removes the post and its likes. Comments and notifications stay.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *postRepository) SetViewCount(ctx context.Context, id string, count int) error {
	return r.setColumn(ctx, id, "view_count", count)
}

func (r *postRepository) IncrementViewCount(ctx context.Context, id string) error {
	return r.setColumn(ctx, id, "view_count", gorm.Expr("view_count + ?", 1))
}

func (r *postRepository) SetCommentCount(ctx context.Context, id string, count int) error {
	return r.setColumn(ctx, id, "comment_count", count)
}

func (r *postRepository) IncrementCommentCount(ctx context.Context, id string) error {
	return r.setColumn(ctx, id, "comment_count", gorm.Expr("comment_count + ?", 1))
}

// setColumn leaves updated_at alone; counters are not edits.
func (r *postRepository) setColumn(ctx context.Context, id, column string, value interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(column, value).Error
}

// AddLike is a set union: liking twice leaves one entry.
func (r *postRepository) AddLike(ctx context.Context, postID, userID string) error {
	like := &models.PostLike{PostID: postID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
}

// RemoveLike is a set difference: removing an absent like is a no-op.
func (r *postRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	return r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostLike{}).Error
}

func (r *postRepository) hydrateLikes(ctx context.Context, db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(posts))
	byID := make(map[string]*models.Post, len(posts))
	for _, p := range posts {
		p.Likes = []string{}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var likes []models.PostLike
	err := db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error
	if err != nil {
		return err
	}
	for _, l := range likes {
		if p, ok := byID[l.PostID]; ok {
			p.Likes = append(p.Likes, l.UserID)
		}
	}
	return nil
}
