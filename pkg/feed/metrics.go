package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_feed_active_connections",
		Help: "Number of active feed WebSocket connections (0 or 1)",
	})

	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_feed_reconnect_attempts_total",
		Help: "Total number of feed reconnection attempts",
	})

	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_feed_reconnect_failures_total",
		Help: "Total number of feed reconnection failures",
	})

	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_feed_messages_received_total",
			Help: "Total number of feed messages received",
		},
		[]string{"event_type"},
	)

	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_feed_message_latency_seconds",
		Help:    "Feed message dispatch latency",
		Buckets: prometheus.DefBuckets,
	})

	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_feed_subscription_count",
		Help: "Number of active market-channel subscriptions",
	})

	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_feed_messages_dropped_total",
			Help: "Total number of feed messages dropped due to full channel",
		},
		[]string{"reason"},
	)

	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_feed_connection_duration_seconds",
		Help:    "Duration of feed WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	HeartbeatStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_feed_heartbeat_stale_total",
		Help: "Total number of heartbeat checks finding the feed stale (no message in 2x heartbeat interval)",
	})
)
