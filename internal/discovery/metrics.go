package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsDiscoveredTotal tracks total markets seen from the Gamma API.
	MarketsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_discovery_markets_seen_total",
		Help: "Total number of markets observed from Gamma API polls",
	})

	// NewMarketsTotal tracks newly eligible markets added to tracking.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_discovery_new_markets_total",
		Help: "Total number of newly eligible markets added",
	})

	// PollDurationSeconds tracks API poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_discovery_poll_duration_seconds",
		Help:    "Duration of Gamma API poll requests",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks API poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_discovery_poll_errors_total",
		Help: "Total number of Gamma API poll failures",
	})

	// MarketsFilteredByEligibilityTotal tracks markets dropped by the
	// eligibility filter, labeled by the reason for rejection.
	MarketsFilteredByEligibilityTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_discovery_markets_filtered_total",
			Help: "Total number of markets dropped by the eligibility filter",
		},
		[]string{"reason"},
	)
)
