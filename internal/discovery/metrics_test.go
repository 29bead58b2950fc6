package discovery

import (
	"testing"
)

func TestMetrics_Registration(t *testing.T) {
	if MarketsDiscoveredTotal == nil {
		t.Error("MarketsDiscoveredTotal not registered")
	}
	if NewMarketsTotal == nil {
		t.Error("NewMarketsTotal not registered")
	}
	if PollDurationSeconds == nil {
		t.Error("PollDurationSeconds not registered")
	}
	if PollErrorsTotal == nil {
		t.Error("PollErrorsTotal not registered")
	}
	if MarketsFilteredByEligibilityTotal == nil {
		t.Error("MarketsFilteredByEligibilityTotal not registered")
	}
}

func TestMetrics_CounterIncrement(t *testing.T) {
	MarketsDiscoveredTotal.Inc()
	NewMarketsTotal.Inc()
	PollErrorsTotal.Inc()
	MarketsFilteredByEligibilityTotal.WithLabelValues("token_count").Inc()
	MarketsFilteredByEligibilityTotal.WithLabelValues("price_range").Inc()
}

func TestMetrics_HistogramObserve(t *testing.T) {
	PollDurationSeconds.Observe(0.5)
}
