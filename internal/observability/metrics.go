package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskhub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AuthEvents counts signups, logins, verifications and resets by outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// MailDeliveries counts outgoing mail by provider, template and outcome.
	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_mail_deliveries_total",
		Help: "Outgoing mail by provider, template and outcome",
	}, []string{"provider", "template", "outcome"})

	// SocialEvents counts follows, friend request transitions, likes and comments.
	SocialEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_social_events_total",
		Help: "Social graph and engagement events by type",
	}, []string{"event"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// NotificationsPublished counts events pushed onto Redis pub/sub.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_notifications_published_total",
		Help: "Realtime notifications published by event type and outcome",
	}, []string{"event", "outcome"})

	// WebSocketBackpressureDrops counts messages dropped because a client could not keep up.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// Outcome renders err as the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
