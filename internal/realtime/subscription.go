package realtime

import (
	"context"
	"log/slog"
	"sync"

	"bulletin/internal/observability"
)

// Loader produces the full current result set of a subscription.
type Loader func(ctx context.Context) (any, error)

// Snapshot is one delivery of a subscription. Err is set when the reload
// failed; the previous snapshot stays the latest good one.
type Snapshot struct {
	Topic   string
	Payload any
	Err     error
}

// Subscription is a scoped live query. It delivers a snapshot on acquisition
// and after every change signal until Close is called or its context ends.
type Subscription struct {
	topic  string
	kind   string
	hub    *Hub
	loader Loader

	ctx    context.Context
	cancel context.CancelFunc

	signal  chan struct{}
	updates chan Snapshot
	once    sync.Once
}

func newSubscription(ctx context.Context, hub *Hub, topic string, loader Loader) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	return &Subscription{
		topic:   topic,
		kind:    TopicKind(topic),
		hub:     hub,
		loader:  loader,
		ctx:     ctx,
		cancel:  cancel,
		signal:  make(chan struct{}, 1),
		updates: make(chan Snapshot, 1),
	}
}

// Topic returns the topic this subscription watches.
func (s *Subscription) Topic() string { return s.topic }

// Updates returns the snapshot stream. It is closed once the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot { return s.updates }

// Done is closed when the subscription has been released.
func (s *Subscription) Done() <-chan struct{} { return s.ctx.Done() }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		s.cancel()
		observability.LiveSubscriptions.WithLabelValues(s.kind).Dec()
	})
}

// notify marks the subscription stale. Signals arriving while a reload is
// pending collapse into that reload.
func (s *Subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.updates)
	defer s.Close()

	for {
		s.reload()
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}
	}
}

func (s *Subscription) reload() {
	payload, err := s.loader(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		observability.LiveReloadErrors.WithLabelValues(s.kind).Inc()
		slog.WarnContext(s.ctx, "live subscription reload failed",
			slog.String("topic", s.topic),
			slog.String("error", err.Error()))
	}
	s.deliver(Snapshot{Topic: s.topic, Payload: payload, Err: err})
}

// deliver keeps only the newest snapshot when the consumer falls behind.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.updates <- snap:
			return
		case <-s.ctx.Done():
			return
		default:
		}
		select {
		case <-s.updates:
			observability.WebSocketBackpressureDrops.WithLabelValues(s.hub.Name(), "stale_snapshot").Inc()
		default:
		}
	}
}
