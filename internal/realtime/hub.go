package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bulletin/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrHubClosed          = errors.New("live hub is shut down")
	ErrServerConnLimit    = errors.New("server connection limit reached")
	ErrUserConnLimit      = errors.New("user connection limit reached")
	ErrUnknownTopic       = errors.New("unknown topic")
	ErrForbiddenTopic     = errors.New("not allowed to subscribe to topic")
	ErrTooManySubscribers = errors.New("too many subscriptions on connection")
)

// Hub maps topics to their live subscriptions and userID to websocket clients.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Subscription]struct{}
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool

	notifier *Notifier
	origin   string
}

// NewHub creates a new Hub. With a Redis client, publishes fan out to every
// instance; without one the hub is process-local.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	return &Hub{
		topics:   make(map[string]map[*Subscription]struct{}),
		conns:    make(map[string]map[*Client]struct{}),
		notifier: NewNotifier(redisClient),
		origin:   uuid.NewString(),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "live hub" }

// Subscribe acquires a live subscription on topic. The first snapshot is
// loaded right away; the subscription ends with Close or when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, topic string, loader Loader) (*Subscription, error) {
	if loader == nil {
		return nil, errors.New("nil loader")
	}
	sub := newSubscription(ctx, h, topic, loader)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.cancel()
		return nil, ErrHubClosed
	}
	m, ok := h.topics[topic]
	if !ok {
		m = make(map[*Subscription]struct{})
		h.topics[topic] = m
	}
	m[sub] = struct{}{}
	h.mu.Unlock()

	observability.LiveSubscriptions.WithLabelValues(sub.kind).Inc()
	go sub.run()
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.topics[sub.topic]; ok {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}

// SubscriberCount returns the number of local subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish marks topics as changed. Local subscribers reload immediately;
// other instances hear about it over Redis. Redis failures are logged only.
func (h *Hub) Publish(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		h.signal(topic)
		observability.LivePublishes.WithLabelValues(TopicKind(topic), "local").Inc()

		if err := h.notifier.Publish(ctx, topic, h.origin); err != nil {
			observability.LogAsyncOperationError(ctx, "live_publish", err, slog.String("topic", topic))
		}
	}
}

func (h *Hub) signal(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		sub.notify()
	}
}

// StartWiring subscribes to the Redis live channels and re-signals local
// subscribers for changes published by other instances.
func (h *Hub) StartWiring(ctx context.Context) error {
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if payload == h.origin {
			return
		}
		topic, ok := ChannelTopic(channel)
		if !ok {
			slog.Warn("invalid live channel", slog.String("channel", channel))
			return
		}
		observability.LivePublishes.WithLabelValues(TopicKind(topic), "remote").Inc()
		h.signal(topic)
	})
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID string, conn *websocket.Conn, resolve Resolver) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID, resolve)
	m[client] = struct{}{}
	h.totalConns++
	return client, nil
}

// UnregisterClient drops a client and releases all of its subscriptions.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	client.closeSubscriptions()
}

// Shutdown closes every subscription and websocket connection.
// Close frames are written by each client's WritePump; Shutdown waits for
// them until ctx ends.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	subs := make([]*Subscription, 0)
	for _, m := range h.topics {
		for sub := range m {
			subs = append(subs, sub)
		}
	}
	clients := make([]*Client, 0, h.totalConns)
	for _, m := range h.conns {
		for c := range m {
			clients = append(clients, c)
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.shutdown(ctx)
		}()
	}
	wg.Wait()
	return nil
}
