package push

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"bulletin/internal/config"
	"bulletin/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu      sync.Mutex
	subs    []*models.PushSubscription
	listErr error
	deleted []string
}

func (s *stubStore) ListByUser(_ context.Context, _ string) ([]*models.PushSubscription, error) {
	return s.subs, s.listErr
}

func (s *stubStore) DeleteByEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, endpoint)
	return nil
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func testDispatcher(store SubscriptionStore, send sendFunc) *Dispatcher {
	return &Dispatcher{
		store:      store,
		subscriber: "admin@example.com",
		publicKey:  "pub",
		privateKey: "priv",
		ttl:        defaultTTL,
		send:       send,
	}
}

func TestNewDispatcherRequiresKeys(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewDispatcher(&config.Config{}, &stubStore{}))

	var d *Dispatcher
	assert.Equal(t, "", d.PublicKey())
	assert.NoError(t, d.Deliver(context.Background(), "u1", Payload{}))
	d.NotifyAsync(&models.Notification{})

	d = NewDispatcher(&config.Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}, &stubStore{})
	require.NotNil(t, d)
	assert.Equal(t, "pub", d.PublicKey())
}

func TestPayloadFor(t *testing.T) {
	t.Parallel()
	p := PayloadFor(&models.Notification{ID: "n1", PostID: "p1", Message: "철수님이 회원님의 게시글을 좋아합니다"})
	assert.Equal(t, Payload{Title: "새 알림", Body: "철수님이 회원님의 게시글을 좋아합니다", URL: "/posts/p1", Tag: "n1"}, p)
}

func TestDeliverSendsToEverySubscription(t *testing.T) {
	t.Parallel()
	store := &stubStore{subs: []*models.PushSubscription{
		{Endpoint: "https://push.example/a", P256dh: "k1", Auth: "a1"},
		{Endpoint: "https://push.example/b", P256dh: "k2", Auth: "a2"},
	}}

	var mu sync.Mutex
	var endpoints []string
	d := testDispatcher(store, func(_ context.Context, msg []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		endpoints = append(endpoints, sub.Endpoint)

		var p Payload
		require.NoError(t, json.Unmarshal(msg, &p))
		assert.Equal(t, "hello", p.Body)
		assert.Equal(t, "priv", opts.VAPIDPrivateKey)
		assert.Equal(t, defaultTTL, opts.TTL)
		return response(http.StatusCreated), nil
	})

	require.NoError(t, d.Deliver(context.Background(), "u1", Payload{Title: "t", Body: "hello"}))
	assert.Equal(t, []string{"https://push.example/a", "https://push.example/b"}, endpoints)
	assert.Empty(t, store.deleted)
}

func TestDeliverRemovesGoneSubscriptions(t *testing.T) {
	t.Parallel()
	store := &stubStore{subs: []*models.PushSubscription{
		{Endpoint: "https://push.example/gone"},
		{Endpoint: "https://push.example/missing"},
		{Endpoint: "https://push.example/ok"},
	}}
	d := testDispatcher(store, func(_ context.Context, _ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		switch sub.Endpoint {
		case "https://push.example/gone":
			return response(http.StatusGone), nil
		case "https://push.example/missing":
			return response(http.StatusNotFound), nil
		}
		return response(http.StatusCreated), nil
	})

	require.NoError(t, d.Deliver(context.Background(), "u1", Payload{}))
	assert.ElementsMatch(t, []string{"https://push.example/gone", "https://push.example/missing"}, store.deleted)
}

func TestDeliverReportsFailures(t *testing.T) {
	t.Parallel()
	store := &stubStore{subs: []*models.PushSubscription{{Endpoint: "a"}, {Endpoint: "b"}}}
	d := testDispatcher(store, func(_ context.Context, _ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		if sub.Endpoint == "a" {
			return nil, errors.New("network down")
		}
		return response(http.StatusBadRequest), nil
	})

	err := d.Deliver(context.Background(), "u1", Payload{})
	assert.EqualError(t, err, "push delivery failed for 2 of 2 subscriptions")
	assert.Empty(t, store.deleted)

	store.listErr = errors.New("db down")
	store.subs = nil
	err = d.Deliver(context.Background(), "u1", Payload{})
	assert.ErrorContains(t, err, "db down")
}
