package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveSubscriptions is the gauge of open live subscriptions by topic kind.
	LiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bulletin_live_subscriptions",
		Help: "Number of open live subscriptions by topic kind",
	}, []string{"kind"})

	// LivePublishes counts change signals by topic kind and origin (local or redis).
	LivePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_live_publishes_total",
		Help: "Total number of live change signals",
	}, []string{"kind", "origin"})

	// LiveReloadErrors counts failed snapshot reloads by topic kind.
	LiveReloadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_live_reload_errors_total",
		Help: "Total number of failed live snapshot reloads",
	}, []string{"kind"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationsCreated counts notification writes by type and outcome.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_notifications_total",
		Help: "Total number of notification attempts by type and outcome",
	}, []string{"type", "outcome"})

	// PushDeliveries counts web push sends by outcome.
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulletin_push_deliveries_total",
		Help: "Total number of web push deliveries by outcome",
	}, []string{"outcome"})

	// UploadBytes observes attachment sizes by provider.
	UploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulletin_upload_bytes",
		Help:    "Size of uploaded attachments in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
	}, []string{"provider"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulletin_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)
