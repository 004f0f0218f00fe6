package seed

import (
	"context"
	"fmt"
	"log/slog"

	"bulletin/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumUsers        int
	NumPosts        int
	CommentsPerPost int
	ChatRooms       int
	GlobalMessages  int
	MaxDays         int
	SkipBcrypt      bool
	ShouldClean     bool
}

// DefaultOptions is the small demo data set seeded on start.
var DefaultOptions = Options{
	NumUsers:        8,
	NumPosts:        30,
	CommentsPerPost: 3,
	ChatRooms:       4,
	GlobalMessages:  20,
	MaxDays:         30,
}

// Result counts what a run created.
type Result struct {
	Users          []*models.User
	Posts          []*models.Post
	Comments       int
	Rooms          int
	GlobalMessages int
}

// demoAccounts are stable logins for local development.
var demoAccounts = []struct{ email, name string }{
	{"demo@example.com", "데모"},
	{"test@example.com", "테스트"},
}

// Seed populates the database with demo users, posts, comments, likes,
// direct conversations and global chat.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	slog.Info("starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			slog.Warn("could not clear existing data, continuing", slog.String("error", err.Error()))
		}
	}

	f := NewFactory(db, opts)
	res := &Result{}

	users, err := createUsers(ctx, f, opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = users
	if len(users) == 0 {
		return res, nil
	}

	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.rnd.Intn(len(users))]
		post, err := f.CreatePost(ctx, author)
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts = append(res.Posts, post)

		for j := 0; j < opts.CommentsPerPost; j++ {
			commenter := users[f.rnd.Intn(len(users))]
			if _, err := f.CreateComment(ctx, commenter, post); err != nil {
				return nil, fmt.Errorf("failed to create comment: %w", err)
			}
			res.Comments++
		}

		for _, u := range users {
			if u.ID != author.ID && f.rnd.Float32() < 0.3 {
				if err := f.CreateLike(ctx, u, post); err != nil {
					return nil, fmt.Errorf("failed to create like: %w", err)
				}
			}
		}
	}
	slog.Info("posts created", slog.Int("posts", len(res.Posts)), slog.Int("comments", res.Comments))

	if len(users) > 1 {
		for i := 0; i < opts.ChatRooms; i++ {
			a := users[i%len(users)]
			b := users[(i+1)%len(users)]
			if a.ID == b.ID {
				continue
			}
			if _, err := f.CreateDirectRoom(ctx, a, b, 4); err != nil {
				return nil, fmt.Errorf("failed to create chat room: %w", err)
			}
			res.Rooms++
		}
	}

	for i := 0; i < opts.GlobalMessages; i++ {
		if _, err := f.CreateGlobalMessage(ctx, users[f.rnd.Intn(len(users))]); err != nil {
			return nil, fmt.Errorf("failed to create global chat message: %w", err)
		}
		res.GlobalMessages++
	}

	slog.Info("database seeding completed",
		slog.Int("rooms", res.Rooms), slog.Int("global_messages", res.GlobalMessages))
	return res, nil
}

// IsEmpty reports whether the board has no posts yet.
func IsEmpty(db *gorm.DB) (bool, error) {
	var n int64
	if err := db.Model(&models.Post{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}

func createUsers(ctx context.Context, f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		var overrides []func(*models.User)
		if i < len(demoAccounts) {
			acct := demoAccounts[i]
			overrides = append(overrides, func(u *models.User) {
				u.Email = acct.email
				u.DisplayName = acct.name
			})
		}
		user, err := f.CreateUser(ctx, overrides...)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func clearData(db *gorm.DB) error {
	slog.Info("clearing existing data")
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&models.ChatMessage{},
			&models.ChatRoomParticipant{},
			&models.ChatRoom{},
			&models.GlobalChatMessage{},
			&models.Notification{},
			&models.PostLike{},
			&models.Comment{},
			&models.Post{},
			&models.PushSubscription{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
