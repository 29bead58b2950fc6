package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmittedTotal tracks submitted BUY orders by outcome.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_execution_orders_submitted_total",
			Help: "Total number of post-only BUY orders submitted",
		},
		[]string{"outcome"},
	)

	// OrderSubmissionDuration tracks order submission latency.
	OrderSubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_execution_order_submission_duration_seconds",
		Help:    "Duration of a single order submission round trip",
		Buckets: prometheus.DefBuckets,
	})

	// OrderSubmissionErrorsTotal tracks submission failures.
	OrderSubmissionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxmaker_execution_order_submission_errors_total",
			Help: "Total number of order submission failures",
		},
		[]string{"outcome"},
	)

	// CancelAllTotal tracks cancel-all calls.
	CancelAllTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_execution_cancel_all_total",
		Help: "Total number of cancel-all calls issued",
	})

	// CancelAllErrorsTotal tracks cancel-all failures.
	CancelAllErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_execution_cancel_all_errors_total",
		Help: "Total number of cancel-all calls that failed",
	})

	// BatchSizeObserved tracks how many orders were submitted per batch call.
	BatchSizeObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_execution_batch_size",
		Help:    "Number of orders submitted per PostOrders batch call",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})
)
