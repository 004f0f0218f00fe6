package cache

import (
	"context"
	"strings"
	"time"
)

// UserTTL bounds how stale a cached profile can be after a missed invalidation.
const UserTTL = 5 * time.Minute

const keyPrefix = "bulletin"

func key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// UserKey is where a user's public profile is cached.
func UserKey(userID string) string {
	return key("user", userID)
}

// Invalidate drops key. It is a no-op without Redis.
func Invalidate(ctx context.Context, key string) {
	if client == nil {
		return
	}
	client.Del(ctx, key)
}

func InvalidateUser(ctx context.Context, userID string) {
	Invalidate(ctx, UserKey(userID))
}
