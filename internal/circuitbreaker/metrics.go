package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CircuitBreakerEnabled indicates whether the circuit breaker allows the
	// trading loop to submit quotes this cycle.
	CircuitBreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_circuit_breaker_enabled",
		Help: "Whether circuit breaker allows order submission (1=enabled, 0=disabled)",
	})

	// CircuitBreakerBalance tracks the last checked USDC balance.
	CircuitBreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_circuit_breaker_balance_usdc",
		Help: "Last checked USDC balance in the wallet",
	})

	// CircuitBreakerDisableThreshold tracks the current threshold for disabling submission.
	CircuitBreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_circuit_breaker_disable_threshold_usdc",
		Help: "Current USDC balance threshold for disabling submission (dynamically calculated)",
	})

	// CircuitBreakerEnableThreshold tracks the current threshold for re-enabling submission.
	CircuitBreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_circuit_breaker_enable_threshold_usdc",
		Help: "Current USDC balance threshold for re-enabling submission (with hysteresis)",
	})

	// CircuitBreakerAvgFillSize tracks the rolling average fill notional.
	CircuitBreakerAvgFillSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_circuit_breaker_avg_fill_size_usdc",
		Help: "Rolling average fill notional from recent fills (used for threshold calculation)",
	})

	// CircuitBreakerStateChanges tracks the number of times the circuit breaker changed state.
	CircuitBreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_circuit_breaker_state_changes_total",
		Help: "Total number of times circuit breaker changed state (enabled/disabled)",
	})

	// CircuitBreakerCheckDuration tracks the time taken to check balance.
	CircuitBreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxmaker_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to check wallet balance",
		Buckets: prometheus.DefBuckets,
	})
)
