// Package seed provides helpers to create demo data for the board database.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"bulletin/internal/models"
	"bulletin/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Factory builds domain entities and persists them through the repositories,
// so seeded rows obey the same invariants as ones created by the API.
type Factory struct {
	users      repository.UserRepository
	posts      repository.PostRepository
	comments   repository.CommentRepository
	chats      repository.ChatRepository
	globalChat repository.GlobalChatRepository

	opts Options
	rnd  *rand.Rand
	hash string
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{
		users:      repository.NewUserRepository(db),
		posts:      repository.NewPostRepository(db),
		comments:   repository.NewCommentRepository(db),
		chats:      repository.NewChatRepository(db),
		globalChat: repository.NewGlobalChatRepository(db),
		opts:       opts,
		//nolint:gosec // Weak random number generator is fine for seeding
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(h)
	return f.hash, nil
}

// backdate spreads created times over the last MaxDays days.
func (f *Factory) backdate() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// CreateUser persists a sample account. Optional overrides run before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d@example.com", gofakeit.Number(100, 999)),
		DisplayName:  gofakeit.Name(),
		PasswordHash: hash,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author without persisting it.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	category := models.Categories[f.rnd.Intn(len(models.Categories))]
	tags := make([]string, 0, 3)
	for i := f.rnd.Intn(4); i > 0; i-- {
		tags = append(tags, strings.ToLower(gofakeit.HackerNoun()))
	}

	post := &models.Post{
		Title:       strings.TrimSuffix(gofakeit.Sentence(5), "."),
		Content:     gofakeit.Paragraph(1, 3, 8, "\n\n"),
		AuthorID:    author.ID,
		AuthorName:  author.Name(),
		Category:    category,
		Tags:        tags,
		Attachments: []models.Attachment{},
		ViewCount:   f.rnd.Intn(200),
		CreatedAt:   f.backdate(),
	}
	if f.rnd.Float32() < 0.3 {
		id := gofakeit.UUID()
		post.Attachments = append(post.Attachments, models.Attachment{
			ID:   id,
			Name: id + ".jpg",
			URL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/600", id),
			Type: "image/jpeg",
			Size: int64(f.rnd.Intn(2 << 20)),
		})
	}
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a sample post by author.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := post.Validate(); err != nil {
		return nil, err
	}
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment and keeps the post's comment count in step.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post) (*models.Comment, error) {
	comment, err := models.NewComment(post.ID, author.ID, author.Name(), gofakeit.Sentence(12))
	if err != nil {
		return nil, err
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	if err := f.posts.IncrementCommentCount(ctx, post.ID); err != nil {
		return nil, err
	}
	post.CommentCount++
	return comment, nil
}

// CreateLike adds user to the post's likes.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, post *models.Post) error {
	if err := f.posts.AddLike(ctx, post.ID, user.ID); err != nil {
		return err
	}
	post.Likes = append(post.Likes, user.ID)
	return nil
}

// CreateDirectRoom opens the conversation between a and b and exchanges a
// few messages, the last of which is left unread for its recipient.
func (f *Factory) CreateDirectRoom(ctx context.Context, a, b *models.User, messages int) (*models.ChatRoom, error) {
	room := &models.ChatRoom{
		ID: models.DirectRoomID(a.ID, b.ID),
		Members: []models.ChatRoomParticipant{
			{UserID: a.ID, DisplayName: a.Name()},
			{UserID: b.ID, DisplayName: b.Name()},
		},
	}
	if _, err := f.chats.CreateRoomIfAbsent(ctx, room); err != nil {
		return nil, err
	}

	at := time.Now().Add(-time.Duration(messages) * time.Minute)
	var last *models.ChatMessage
	for i := 0; i < messages; i++ {
		sender, recipient := a, b
		if i%2 == 1 {
			sender, recipient = b, a
		}
		msg, err := models.NewChatMessage(room.ID, sender.ID, sender.Name(), gofakeit.Sentence(8))
		if err != nil {
			return nil, err
		}
		msg.CreatedAt = at.Add(time.Duration(i) * time.Minute)
		msg.IsRead = i < messages-1
		if err := f.chats.CreateMessage(ctx, msg); err != nil {
			return nil, err
		}
		if !msg.IsRead {
			if err := f.chats.SetUnread(ctx, room.ID, recipient.ID, 1); err != nil {
				return nil, err
			}
		}
		last = msg
	}
	if last != nil {
		if err := f.chats.UpdateLastMessage(ctx, room.ID, last.Content, last.CreatedAt); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// CreateGlobalMessage posts a line to the board-wide chat.
func (f *Factory) CreateGlobalMessage(ctx context.Context, sender *models.User) (*models.GlobalChatMessage, error) {
	msg, err := models.NewGlobalChatMessage(sender.ID, sender.Name(), gofakeit.Sentence(10))
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = f.backdate()
	if err := f.globalChat.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
