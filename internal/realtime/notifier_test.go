package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.Publish(context.Background(), TopicPosts, "origin"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {
		t.Fatal("unexpected message")
	}))
}

func TestNotifier_PatternSubscriberReceivesTopics(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type msg struct{ channel, payload string }
	got := make(chan msg, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- msg{channel, payload}
	}))

	require.NoError(t, n.Publish(ctx, PostTopic("p1"), "instance-a"))

	select {
	case m := <-got:
		assert.Equal(t, "live:posts/p1", m.channel)
		assert.Equal(t, "instance-a", m.payload)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no message received")
	}
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		if payload == "boom" {
			panic("handler failure")
		}
		got <- payload
	}))

	require.NoError(t, n.Publish(ctx, TopicPosts, "boom"))
	require.NoError(t, n.Publish(ctx, TopicPosts, "after"))

	select {
	case p := <-got:
		assert.Equal(t, "after", p)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("subscriber stopped after panic")
	}
}
