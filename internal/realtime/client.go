package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"bulletin/internal/middleware"
	"bulletin/internal/observability"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	maxSubscriptionsPerClient = 32
)

// Message types exchanged over the live websocket.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeSnapshot     = "snapshot"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
)

// Request is a client to server message.
type Request struct {
	Type   string         `json:"type"`
	Topic  string         `json:"topic"`
	Params map[string]any `json:"params,omitempty"`
}

// ParamString returns a string parameter or "".
func (r Request) ParamString(name string) string {
	switch v := r.Params[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ParamInt returns an integer parameter, or def when it is absent or malformed.
func (r Request) ParamInt(name string, def int) int {
	switch v := r.Params[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Envelope is a server to client message.
type Envelope struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resolver authorizes a subscribe request for userID and returns the loader
// producing its result set.
type Resolver func(ctx context.Context, userID string, req Request) (Loader, error)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// UserID for this client
	UserID string

	resolve Resolver
	logger  *observability.WSLogger

	ctx    context.Context
	cancel context.CancelFunc

	// goingAway makes WritePump send a going-away close frame on exit.
	goingAway atomic.Bool
	// writeDone is closed when WritePump returns.
	writeDone chan struct{}

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, userID string, resolve Resolver) *Client {
	ctx, cancel := context.WithCancel(middleware.WithUserID(context.Background(), userID))
	return &Client{
		Hub:       hub,
		Conn:      conn,
		UserID:    userID,
		Send:      make(chan []byte, 256),
		resolve:   resolve,
		logger:    observability.NewWSLogger(hub.Name()),
		ctx:       ctx,
		cancel:    cancel,
		writeDone: make(chan struct{}),
		subs:      make(map[string]*Subscription),
	}
}

// ReadPump pumps messages from the websocket connection to the client's handler.
func (c *Client) ReadPump() {
	reason := "closed"
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		c.logger.LogDisconnect(c.ctx, c.UserID, reason)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				reason = "read_error"
				c.logger.LogError(c.ctx, "", err, "read")
			}
			return
		}
		c.HandleMessage(message)
	}
}

// WritePump pumps messages from Send to the websocket connection. It is the
// only goroutine that writes to Conn.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			if c.goingAway.Load() {
				_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
				if err != nil {
					c.logger.LogError(c.ctx, "", err, "close")
				}
			}
			return
		}
	}
}

// shutdown asks WritePump to say goodbye and waits until it has, or until
// ctx ends.
func (c *Client) shutdown(ctx context.Context) {
	c.goingAway.Store(true)
	c.closeSubscriptions()
	if c.Conn == nil {
		return
	}
	select {
	case <-c.writeDone:
	case <-ctx.Done():
		// Close may be called concurrently with a writer.
		_ = c.Conn.Close()
	}
}

// TrySend queues a message without blocking. When the buffer is full the
// message is dropped and the client is told so it can resubscribe.
func (c *Client) TrySend(message []byte) {
	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		dropNotice := []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}

func (c *Client) sendEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.LogError(c.ctx, env.Topic, err, "encode")
		return
	}
	c.TrySend(data)
}

func (c *Client) sendError(topic string, err error) {
	c.sendEnvelope(Envelope{Type: TypeError, Topic: topic, Error: err.Error()})
}

// HandleMessage dispatches one client message.
func (c *Client) HandleMessage(raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError("", errors.New("invalid message"))
		return
	}
	c.logger.LogMessage(c.ctx, req.Topic, req.Type)

	switch req.Type {
	case TypeSubscribe:
		if err := c.Subscribe(req); err != nil {
			c.sendError(req.Topic, err)
		}
	case TypeUnsubscribe:
		c.Unsubscribe(req.Topic)
		c.sendEnvelope(Envelope{Type: TypeUnsubscribed, Topic: req.Topic})
	case TypePing:
		c.sendEnvelope(Envelope{Type: TypePong})
	default:
		c.sendError(req.Topic, errors.New("unknown message type"))
	}
}

// Subscribe resolves and starts a subscription. A repeated subscribe on the
// same topic replaces the previous one, so params can be changed in place.
func (c *Client) Subscribe(req Request) error {
	if _, _, ok := ParseTopic(req.Topic); !ok {
		return ErrUnknownTopic
	}
	if c.resolve == nil {
		return ErrUnknownTopic
	}

	c.mu.Lock()
	_, replacing := c.subs[req.Topic]
	if !replacing && len(c.subs) >= maxSubscriptionsPerClient {
		c.mu.Unlock()
		return ErrTooManySubscribers
	}
	c.mu.Unlock()

	loader, err := c.resolve(c.ctx, c.UserID, req)
	if err != nil {
		return err
	}
	sub, err := c.Hub.Subscribe(c.ctx, req.Topic, loader)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if prev, ok := c.subs[req.Topic]; ok {
		prev.Close()
	}
	c.subs[req.Topic] = sub
	c.mu.Unlock()

	go c.forward(sub)
	return nil
}

// Unsubscribe releases the subscription on topic, if any.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Topics returns the topics the client is subscribed to.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	return out
}

func (c *Client) forward(sub *Subscription) {
	for snap := range sub.Updates() {
		if snap.Err != nil {
			c.sendError(snap.Topic, errors.New("failed to load topic"))
			continue
		}
		c.sendEnvelope(Envelope{Type: TypeSnapshot, Topic: snap.Topic, Payload: snap.Payload})
	}

	c.mu.Lock()
	if c.subs[sub.topic] == sub {
		delete(c.subs, sub.topic)
	}
	c.mu.Unlock()
}

func (c *Client) closeSubscriptions() {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.cancel()
}
