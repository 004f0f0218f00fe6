package realtime

import "strings"

// Topic kinds, used as metric labels and by resolvers to dispatch subscriptions.
const (
	KindPosts         = "posts"
	KindPost          = "post"
	KindPostComments  = "post_comments"
	KindNotifications = "notifications"
	KindUserChatRooms = "user_chat_rooms"
	KindChatRoom      = "chat_room"
	KindChatMessages  = "chat_messages"
	KindGlobalChat    = "global_chat"
)

const (
	TopicPosts      = "posts"
	TopicGlobalChat = "globalChat"
)

func PostTopic(postID string) string { return "posts/" + postID }

func PostCommentsTopic(postID string) string { return "posts/" + postID + "/comments" }

func NotificationsTopic(userID string) string { return "notifications/" + userID }

func UserChatRoomsTopic(userID string) string { return "users/" + userID + "/chatRooms" }

func ChatRoomTopic(roomID string) string { return "chatRooms/" + roomID }

func ChatMessagesTopic(roomID string) string { return "chatRooms/" + roomID + "/messages" }

// ParseTopic splits a topic into its kind and the id it is scoped to.
// ok is false for anything that is not a known topic shape.
func ParseTopic(topic string) (kind, id string, ok bool) {
	switch topic {
	case TopicPosts:
		return KindPosts, "", true
	case TopicGlobalChat:
		return KindGlobalChat, "", true
	}

	parts := strings.Split(topic, "/")
	for _, p := range parts {
		if p == "" {
			return "", "", false
		}
	}

	switch {
	case len(parts) == 2 && parts[0] == "posts":
		return KindPost, parts[1], true
	case len(parts) == 3 && parts[0] == "posts" && parts[2] == "comments":
		return KindPostComments, parts[1], true
	case len(parts) == 2 && parts[0] == "notifications":
		return KindNotifications, parts[1], true
	case len(parts) == 3 && parts[0] == "users" && parts[2] == "chatRooms":
		return KindUserChatRooms, parts[1], true
	case len(parts) == 2 && parts[0] == "chatRooms":
		return KindChatRoom, parts[1], true
	case len(parts) == 3 && parts[0] == "chatRooms" && parts[2] == "messages":
		return KindChatMessages, parts[1], true
	}
	return "", "", false
}

// TopicKind returns the kind of topic, or "unknown".
func TopicKind(topic string) string {
	kind, _, ok := ParseTopic(topic)
	if !ok {
		return "unknown"
	}
	return kind
}
