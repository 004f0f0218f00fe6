package seed

import (
	"context"
	"testing"

	"bulletin/internal/models"
	"bulletin/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeed_PopulatesBoard(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	empty, err := IsEmpty(db)
	require.NoError(t, err)
	assert.True(t, empty)

	res, err := Seed(ctx, db, Options{
		NumUsers:        3,
		NumPosts:        4,
		CommentsPerPost: 2,
		ChatRooms:       2,
		GlobalMessages:  5,
		SkipBcrypt:      true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Users, 3)
	assert.Len(t, res.Posts, 4)
	assert.Equal(t, 8, res.Comments)
	assert.Equal(t, 2, res.Rooms)
	assert.Equal(t, 5, res.GlobalMessages)

	empty, err = IsEmpty(db)
	require.NoError(t, err)
	assert.False(t, empty)

	var demo models.User
	require.NoError(t, db.Where("email = ?", "demo@example.com").First(&demo).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(demo.PasswordHash), []byte(DemoPassword)))

	// Stored comment counts match the comment rows.
	for _, p := range res.Posts {
		var stored models.Post
		require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
		var n int64
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&n).Error)
		assert.Equal(t, int(n), stored.CommentCount)
		_, ok := models.ParseCategory(string(stored.Category))
		assert.True(t, ok)
	}
}

func TestCreateDirectRoom_LeavesLastMessageUnread(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	f := NewFactory(db, Options{SkipBcrypt: true})

	a, err := f.CreateUser(ctx)
	require.NoError(t, err)
	b, err := f.CreateUser(ctx)
	require.NoError(t, err)

	room, err := f.CreateDirectRoom(ctx, a, b, 3)
	require.NoError(t, err)
	assert.Equal(t, models.DirectRoomID(a.ID, b.ID), room.ID)

	var stored models.ChatRoom
	require.NoError(t, db.Preload("Members").First(&stored, "id = ?", room.ID).Error)
	stored.Hydrate()
	assert.NotEmpty(t, stored.LastMessage)
	// Three messages alternate a, b, a: the last one waits for b.
	assert.Equal(t, 1, stored.UnreadCount[b.ID])
	assert.Equal(t, 0, stored.UnreadCount[a.ID])
}

func TestSeed_CleanRemovesPreviousRun(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	opts := Options{NumUsers: 2, NumPosts: 2, SkipBcrypt: true}

	_, err := Seed(ctx, db, opts)
	require.NoError(t, err)

	opts.ShouldClean = true
	_, err = Seed(ctx, db, opts)
	require.NoError(t, err)

	var posts, users int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 2, posts)
	assert.EqualValues(t, 2, users)
}
