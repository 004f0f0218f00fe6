package server

import (
	"context"
	"errors"

	"bulletin/internal/models"
	"bulletin/internal/realtime"
	"bulletin/internal/service"
)

// resolveTopic authorizes a live subscription and returns the query that
// produces the topic's current result set.
func (s *Server) resolveTopic(ctx context.Context, userID string, req realtime.Request) (realtime.Loader, error) {
	kind, id, ok := realtime.ParseTopic(req.Topic)
	if !ok {
		return nil, realtime.ErrUnknownTopic
	}

	switch kind {
	case realtime.KindPosts:
		limit := req.ParamInt("limit", service.HomePostLimit)
		category := req.ParamString("category")
		return func(ctx context.Context) (any, error) {
			return s.postService.ListPosts(ctx, limit, category)
		}, nil

	case realtime.KindPost:
		return func(ctx context.Context) (any, error) {
			post, err := s.postService.GetPost(ctx, id)
			if err != nil {
				var appErr *models.AppError
				if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
					return nil, nil
				}
				return nil, err
			}
			return post, nil
		}, nil

	case realtime.KindPostComments:
		return func(ctx context.Context) (any, error) {
			return s.commentService.ListComments(ctx, id)
		}, nil

	case realtime.KindNotifications:
		if id != userID {
			return nil, realtime.ErrForbiddenTopic
		}
		filter := req.ParamString("filter")
		if filter != "" && filter != service.FilterAll && filter != service.FilterUnread {
			return nil, models.NewValidationError("Unknown notification filter: " + filter)
		}
		return func(ctx context.Context) (any, error) {
			return s.notificationService.ListNotifications(ctx, userID, filter)
		}, nil

	case realtime.KindUserChatRooms:
		if id != userID {
			return nil, realtime.ErrForbiddenTopic
		}
		return func(ctx context.Context) (any, error) {
			return s.chatService.ListRooms(ctx, userID)
		}, nil

	case realtime.KindChatRoom, realtime.KindChatMessages:
		member, err := s.chatService.IsParticipant(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, realtime.ErrForbiddenTopic
		}
		if kind == realtime.KindChatRoom {
			return func(ctx context.Context) (any, error) {
				return s.chatService.GetRoom(ctx, userID, id)
			}, nil
		}
		return func(ctx context.Context) (any, error) {
			msgs, err := s.chatService.ListMessages(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			// A subscriber watching the conversation has seen what arrived.
			if len(msgs) > 0 {
				if err := s.chatService.MarkRoomRead(ctx, userID, id); err != nil {
					return nil, err
				}
			}
			return msgs, nil
		}, nil

	case realtime.KindGlobalChat:
		return func(ctx context.Context) (any, error) {
			return s.chatService.ListGlobalMessages(ctx)
		}, nil
	}
	return nil, realtime.ErrUnknownTopic
}
