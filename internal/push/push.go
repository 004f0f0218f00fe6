// Package push delivers notifications to registered browsers over Web Push.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"bulletin/internal/config"
	"bulletin/internal/models"
	"bulletin/internal/observability"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"
)

const (
	defaultTTL     = 60 * 60 * 24
	deliverTimeout = 10 * time.Second
)

// SubscriptionStore is the subset of the push subscription repository the dispatcher needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Payload is what the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PayloadFor renders a notification for the browser.
func PayloadFor(n *models.Notification) Payload {
	p := Payload{Title: "새 알림", Body: n.Message, Tag: n.ID}
	if n.PostID != "" {
		p.URL = "/posts/" + n.PostID
	}
	return p
}

type sendFunc func(ctx context.Context, message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Dispatcher sends push messages to every browser a user registered.
type Dispatcher struct {
	store      SubscriptionStore
	subscriber string
	publicKey  string
	privateKey string
	ttl        int
	send       sendFunc
}

// NewDispatcher returns nil when VAPID keys are not configured. A nil
// Dispatcher accepts every call and does nothing.
func NewDispatcher(cfg *config.Config, store SubscriptionStore) *Dispatcher {
	if cfg == nil || !cfg.PushEnabled() {
		return nil
	}
	return &Dispatcher{
		store:      store,
		subscriber: cfg.VAPIDSubscriber,
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		ttl:        defaultTTL,
		send:       webpush.SendNotificationWithContext,
	}
}

// PublicKey is the application server key browsers subscribe with.
func (d *Dispatcher) PublicKey() string {
	if d == nil {
		return ""
	}
	return d.publicKey
}

// NotifyAsync pushes n to its recipient in the background. Failures are logged only.
func (d *Dispatcher) NotifyAsync(n *models.Notification) {
	if d == nil || n == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in push delivery", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := d.Deliver(ctx, n.UserID, PayloadFor(n)); err != nil {
			observability.LogAsyncOperationError(ctx, "push_notification", err, slog.String("user_id", n.UserID))
		}
	}()
}

// Deliver sends payload to every subscription of userID. Endpoints the push
// service reports as gone are removed.
func (d *Dispatcher) Deliver(ctx context.Context, userID string, payload Payload) error {
	if d == nil {
		return nil
	}
	subs, err := d.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var failed int
	for _, s := range subs {
		outcome := d.deliverOne(ctx, s, body)
		observability.PushDeliveries.WithLabelValues(outcome).Inc()
		if outcome == "error" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("push delivery failed for %d of %d subscriptions", failed, len(subs))
	}
	return nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, s *models.PushSubscription, body []byte) string {
	resp, err := d.send(ctx, body, &webpush.Subscription{
		Endpoint: s.Endpoint,
		Keys: webpush.Keys{
			P256dh: s.P256dh,
			Auth:   s.Auth,
		},
	}, &webpush.Options{
		Subscriber:      d.subscriber,
		VAPIDPublicKey:  d.publicKey,
		VAPIDPrivateKey: d.privateKey,
		TTL:             d.ttl,
	})
	if err != nil {
		slog.WarnContext(ctx, "push send failed", slog.String("endpoint", s.Endpoint), slog.String("error", err.Error()))
		return "error"
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if err := d.store.DeleteByEndpoint(ctx, s.Endpoint); err != nil {
			slog.WarnContext(ctx, "failed to delete stale push subscription",
				slog.String("endpoint", s.Endpoint), slog.String("error", err.Error()))
		}
		return "expired"
	case resp.StatusCode >= 400:
		slog.WarnContext(ctx, "push service rejected message",
			slog.String("endpoint", s.Endpoint), slog.Int("status", resp.StatusCode))
		return "error"
	default:
		return "sent"
	}
}
