package models

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationMessage(t *testing.T) {
	assert.Equal(t, "철수님이 회원님의 게시글을 좋아합니다", NotificationMessage(NotificationLike, "철수"))
	assert.Equal(t, "철수님이 회원님의 게시글에 댓글을 달았습니다", NotificationMessage(NotificationComment, "철수"))
	assert.Empty(t, NotificationMessage("follow", "철수"))
}

func TestUserName_FallsBackToEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", (&User{Email: "a@b.com"}).Name())
	assert.Equal(t, "Alice", (&User{Email: "a@b.com", DisplayName: "Alice"}).Name())
}

func TestChatRoomHydrate(t *testing.T) {
	room := &ChatRoom{
		ID: "r1",
		Members: []ChatRoomParticipant{
			{RoomID: "r1", UserID: "a", DisplayName: "Alice", UnreadCount: 0},
			{RoomID: "r1", UserID: "b", DisplayName: "Bob", UnreadCount: 3},
		},
	}
	room.Hydrate()

	assert.Equal(t, []string{"a", "b"}, room.Participants)
	assert.Equal(t, "Bob", room.ParticipantNames["b"])
	assert.Equal(t, 3, room.UnreadCount["b"])
	assert.True(t, room.HasParticipant("a"))
	assert.False(t, room.HasParticipant("c"))
}

func TestNewChatMessage(t *testing.T) {
	m, err := NewChatMessage("r1", "a", "Alice", "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Content)
	assert.False(t, m.IsRead)

	_, err = NewChatMessage("r1", "a", "Alice", "   ")
	require.Error(t, err)

	_, err = NewGlobalChatMessage("a", "Alice", strings.Repeat("x", MaxCommentLength+1))
	require.Error(t, err)
}

func TestNewComment_TrimsContent(t *testing.T) {
	c, err := NewComment("p1", "a", "Alice", "\tnice\n")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)

	_, err = NewComment("", "a", "Alice", "nice")
	require.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, StatusFor(NewNotFoundError("Post", "p1")))
	assert.Equal(t, fiber.StatusForbidden, StatusFor(NewForbiddenError("nope")))
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, fiber.StatusConflict, StatusFor(NewAuthError(AuthEmailAlreadyInUse, nil)))
	assert.Equal(t, fiber.StatusTooManyRequests, StatusFor(NewAuthError(AuthTooManyRequests, nil)))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestAuthErrorMessage_UnknownCodeFallsBack(t *testing.T) {
	assert.Equal(t, "로그인 중 오류가 발생했습니다.", NewAuthError("auth/unknown", nil).Message())
	assert.Equal(t, "회원가입 중 오류가 발생했습니다.", AuthMessage("auth/unknown", AuthSignupFailed))
	assert.Equal(t, "이미 사용 중인 이메일입니다.", NewAuthError(AuthEmailAlreadyInUse, nil).Message())
}

func TestRespond_AuthErrorBody(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Respond(c, NewAuthError(AuthWrongPassword, errors.New("mismatch")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "비밀번호가 올바르지 않습니다.", body.Error)
	assert.Equal(t, AuthWrongPassword, body.Code)
}

func TestDirectRoomID_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, "dm_alice_bob", DirectRoomID("bob", "alice"))
	assert.Equal(t, DirectRoomID("x", "y"), DirectRoomID("y", "x"))
}
