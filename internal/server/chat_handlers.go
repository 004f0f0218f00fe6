package server

import (
	"bulletin/internal/middleware"
	"bulletin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateOrGetChatRoom handles POST /api/chat/rooms
// @Summary Open a direct chat
// @Description Returns the room shared with the other user, creating it on first contact
// @Tags chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{otherUserId=string,otherUserName=string} true "Other participant"
// @Success 200 {object} object{roomId=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/rooms [post]
func (s *Server) CreateOrGetChatRoom(c *fiber.Ctx) error {
	var req struct {
		OtherUserID   string `json:"otherUserId"`
		OtherUserName string `json:"otherUserName"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}

	roomID, err := s.chatService.CreateOrGetChatRoom(c.UserContext(), service.CreateRoomInput{
		SelfID:    user.ID,
		SelfName:  user.Name(),
		OtherID:   req.OtherUserID,
		OtherName: req.OtherUserName,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"roomId": roomID})
}

// GetChatRooms handles GET /api/chat/rooms
// @Summary My chat rooms
// @Description Most recent conversation first
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.ChatRoom
// @Router /chat/rooms [get]
func (s *Server) GetChatRooms(c *fiber.Ctx) error {
	rooms, err := s.chatService.ListRooms(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(rooms)
}

// GetChatRoom handles GET /api/chat/rooms/:id
func (s *Server) GetChatRoom(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	room, err := s.chatService.GetRoom(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(room)
}

// GetChatMessages handles GET /api/chat/rooms/:id/messages. A non-empty
// result resets the caller's unread count for the room.
// @Summary Room messages
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {array} models.ChatMessage
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/rooms/{id}/messages [get]
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	uid := middleware.UserID(c)
	msgs, err := s.chatService.ListMessages(c.UserContext(), uid, id)
	if err != nil {
		return respond(c, err)
	}
	// Opening a conversation reads it.
	if len(msgs) > 0 {
		if err := s.chatService.MarkRoomRead(c.UserContext(), uid, id); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to reset unread count",
				"room_id", id, "error", err)
		}
	}
	return c.JSON(msgs)
}

// SendChatMessage handles POST /api/chat/rooms/:id/messages
// @Summary Send direct message
// @Tags chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param request body object{content=string} true "Message"
// @Success 201 {object} models.ChatMessage
// @Router /chat/rooms/{id}/messages [post]
func (s *Server) SendChatMessage(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}

	msg, err := s.chatService.SendMessage(c.UserContext(), service.SendMessageInput{
		RoomID:     id,
		SenderID:   user.ID,
		SenderName: user.Name(),
		Content:    req.Content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkChatRoomRead handles POST /api/chat/rooms/:id/read
func (s *Server) MarkChatRoomRead(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	if err := s.chatService.MarkRoomRead(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetGlobalMessages handles GET /api/chat/global
// @Summary Global chat
// @Description The newest 200 messages, oldest first
// @Tags chat
// @Produce json
// @Success 200 {array} models.GlobalChatMessage
// @Router /chat/global [get]
func (s *Server) GetGlobalMessages(c *fiber.Ctx) error {
	msgs, err := s.chatService.ListGlobalMessages(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(msgs)
}

// SendGlobalMessage handles POST /api/chat/global
func (s *Server) SendGlobalMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}
	msg, err := s.chatService.SendGlobalMessage(c.UserContext(), user.ID, user.Name(), req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
