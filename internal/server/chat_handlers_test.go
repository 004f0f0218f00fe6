package server

import (
	"net/http"
	"testing"

	"bulletin/internal/config"
	"bulletin/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectChat(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.signup("alice@example.com", "앨리스")
	bobToken, bob := env.signup("bob@example.com", "밥")
	eveToken, _ := env.signup("eve@example.com", "이브")

	resp := env.do(http.MethodPost, "/api/chat/rooms", aliceToken, fiber.Map{
		"otherUserId": bob.ID, "otherUserName": "밥",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	roomID := decode[map[string]string](t, resp)["roomId"]
	require.NotEmpty(t, roomID)

	// Opening from the other side lands in the same room.
	resp = env.do(http.MethodPost, "/api/chat/rooms", bobToken, fiber.Map{
		"otherUserId": alice.ID, "otherUserName": "앨리스",
	})
	assert.Equal(t, roomID, decode[map[string]string](t, resp)["roomId"])

	resp = env.do(http.MethodPost, "/api/chat/rooms", aliceToken, fiber.Map{"otherUserId": alice.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", aliceToken, fiber.Map{"content": "안녕"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[models.ChatMessage](t, resp)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.False(t, msg.IsRead)

	resp = env.do(http.MethodGet, "/api/chat/rooms", bobToken, nil)
	rooms := decode[[]models.ChatRoom](t, resp)
	require.Len(t, rooms, 1)
	assert.Equal(t, "안녕", rooms[0].LastMessage)
	assert.Equal(t, 1, rooms[0].UnreadCount[bob.ID])
	assert.Equal(t, 0, rooms[0].UnreadCount[alice.ID])
	assert.Equal(t, "앨리스", rooms[0].ParticipantNames[alice.ID])

	t.Run("outsiders are rejected", func(t *testing.T) {
		for _, path := range []string{"/api/chat/rooms/" + roomID, "/api/chat/rooms/" + roomID + "/messages"} {
			resp := env.do(http.MethodGet, path, eveToken, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		}
		resp := env.do(http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", eveToken, fiber.Map{"content": "끼어들기"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	resp = env.do(http.MethodPost, "/api/chat/rooms/"+roomID+"/read", bobToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/chat/rooms/"+roomID, bobToken, nil)
	room := decode[models.ChatRoom](t, resp)
	assert.Equal(t, 0, room.UnreadCount[bob.ID])

	resp = env.do(http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", bobToken, nil)
	msgs := decode[[]models.ChatMessage](t, resp)
	require.Len(t, msgs, 1)
	assert.Equal(t, "안녕", msgs[0].Content)

	t.Run("loading messages marks the room read", func(t *testing.T) {
		resp := env.do(http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", aliceToken, fiber.Map{"content": "또 안녕"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		unread := func() int {
			resp := env.do(http.MethodGet, "/api/chat/rooms/"+roomID, bobToken, nil)
			return decode[models.ChatRoom](t, resp).UnreadCount[bob.ID]
		}
		require.Equal(t, 1, unread())

		// The sender reading does not clear the recipient's badge.
		env.do(http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", aliceToken, nil)
		assert.Equal(t, 1, unread())

		resp = env.do(http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", bobToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]models.ChatMessage](t, resp), 2)
		assert.Equal(t, 0, unread())
	})

	resp = env.do(http.MethodGet, "/api/chat/rooms/missing", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDirectChat_DeterministicRooms(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.FeatureFlags = "deterministic_chat_rooms=true" })
	aliceToken, alice := env.signup("alice@example.com", "앨리스")
	_, bob := env.signup("bob@example.com", "밥")

	resp := env.do(http.MethodPost, "/api/chat/rooms", aliceToken, fiber.Map{"otherUserId": bob.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DirectRoomID(alice.ID, bob.ID), decode[map[string]string](t, resp)["roomId"])
}

func TestGlobalChat(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup("talker@example.com", "수다쟁이")

	resp := env.do(http.MethodPost, "/api/chat/global", "", fiber.Map{"content": "익명"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodPost, "/api/chat/global", token, fiber.Map{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, content := range []string{"첫째", "둘째"} {
		resp = env.do(http.MethodPost, "/api/chat/global", token, fiber.Map{"content": content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/chat/global", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[[]models.GlobalChatMessage](t, resp)
	require.Len(t, msgs, 2)
	assert.Equal(t, "첫째", msgs[0].Content)
	assert.Equal(t, "둘째", msgs[1].Content)
	assert.Equal(t, user.ID, msgs[1].SenderID)
}
