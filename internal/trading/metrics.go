package trading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDurationSeconds tracks wall-clock time for one cancel-quote-submit cycle.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_trading_cycle_duration_seconds",
		Help:    "Duration of one trading cycle",
		Buckets: prometheus.DefBuckets,
	})

	// CycleMarketsTotal tracks how many markets were considered in the most recent cycle.
	CycleMarketsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_trading_cycle_markets",
		Help: "Number of markets considered in the most recent cycle",
	})

	// CyclesSkippedTotal counts cycles skipped because the circuit breaker was tripped.
	CyclesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_trading_cycles_skipped_total",
		Help: "Total cycles skipped due to the balance circuit breaker",
	})

	// QuotesSubmittedTotal counts quotes submitted, labeled by outcome (paper/live/rejected).
	QuotesSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_trading_quotes_submitted_total",
			Help: "Total quotes submitted, labeled by submission outcome",
		},
		[]string{"mode"},
	)

	// FillsProcessedTotal counts fills successfully matched to a pending quote.
	FillsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_trading_fills_processed_total",
		Help: "Total fills matched to a pending quote and recorded",
	})

	// FillsUnmatchedTotal counts fills whose order id had no pending quote.
	FillsUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_trading_fills_unmatched_total",
		Help: "Total fill messages dropped because their order id was unknown",
	})
)
