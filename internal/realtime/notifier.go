// Package realtime keeps live query subscriptions fresh. Writers publish the
// topics they touched; subscribers reload their result set and receive it as a
// snapshot. Redis pub/sub carries the change signals between instances.
package realtime

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces live topic channels in Redis.
const ChannelPrefix = "live:"

// TopicChannel derives the Redis channel name for a topic.
func TopicChannel(topic string) string {
	return ChannelPrefix + topic
}

// ChannelTopic is the inverse of TopicChannel.
func ChannelTopic(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return "", false
	}
	topic := strings.TrimPrefix(channel, ChannelPrefix)
	return topic, topic != ""
}

// Notifier publishes topic change signals into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish signals a topic change. The payload names the publishing instance so
// it can skip its own echo.
func (n *Notifier) Publish(ctx context.Context, topic, origin string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, TopicChannel(topic), origin).Err()
}

// StartPatternSubscriber subscribes to `live:*` and calls onMessage for each
// incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	// Wait for the subscription to be confirmed so publishes right after
	// startup are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in live pattern subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
