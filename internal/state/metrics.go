package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_state_saves_total",
		Help: "Total number of state-file save attempts that succeeded",
	})

	SaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_state_save_failures_total",
		Help: "Total number of state-file save attempts that failed",
	})

	PositionsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_state_positions_tracked",
		Help: "Number of markets with a tracked position in persisted state",
	})
)
