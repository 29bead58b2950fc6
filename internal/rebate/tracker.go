// Package rebate maintains a per-day maker-volume/rebate histogram,
// grounded on original_source/polymarket/rebate_tracker.py's RebateTracker.
package rebate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultRateBps is the default maker-rebate rate: 10 bps = 0.001.
const DefaultRateBps = 10.0

// DailyStats holds one day's maker-fill aggregate.
type DailyStats struct {
	Date             string  `json:"date"` // YYYY-MM-DD (UTC)
	MakerVolume      float64 `json:"maker_volume"`
	EstimatedRebate  float64 `json:"estimated_rebate"`
	FillCount        int     `json:"fill_count"`
}

// Tracker accumulates daily maker-volume and estimated-rebate totals.
type Tracker struct {
	mu      sync.RWMutex
	rateBps float64
	days    map[string]*DailyStats
	logger  *zap.Logger
}

// New creates a rebate tracker. rateBps defaults to DefaultRateBps when <= 0.
func New(rateBps float64, logger *zap.Logger) *Tracker {
	if rateBps <= 0 {
		rateBps = DefaultRateBps
	}
	return &Tracker{
		rateBps: rateBps,
		days:    make(map[string]*DailyStats),
		logger:  logger,
	}
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordFill increments today's maker-volume histogram for a maker fill.
// Non-maker fills are not rebate-eligible and are ignored here (the
// inventory/state layers still record them as fills).
func (t *Tracker) RecordFill(notional float64, maker bool, at time.Time) {
	if !maker {
		return
	}

	key := dateKey(at)

	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.days[key]
	if !ok {
		stats = &DailyStats{Date: key}
		t.days[key] = stats
	}
	stats.MakerVolume += notional
	stats.FillCount++
	stats.EstimatedRebate = stats.MakerVolume * (t.rateBps / 10000.0)

	RebateVolumeTotal.Add(notional)
	RebateEstimateTotal.Set(t.totalRebatesLocked())

	t.logger.Debug("rebate-fill-recorded",
		zap.String("date", key),
		zap.Float64("notional", notional),
		zap.Float64("day-maker-volume", stats.MakerVolume))
}

// TodayStats returns a copy of today's stats (zero-valued if no fills yet).
func (t *Tracker) TodayStats() DailyStats {
	return t.StatsForDate(dateKey(time.Now()))
}

// StatsForDate returns a copy of the stats for the given YYYY-MM-DD key.
func (t *Tracker) StatsForDate(date string) DailyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats, ok := t.days[date]
	if !ok {
		return DailyStats{Date: date}
	}
	return *stats
}

// TotalVolume sums maker volume across every tracked day.
func (t *Tracker) TotalVolume() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total float64
	for _, s := range t.days {
		total += s.MakerVolume
	}
	return total
}

// TotalRebates sums estimated rebates across every tracked day.
func (t *Tracker) TotalRebates() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalRebatesLocked()
}

func (t *Tracker) totalRebatesLocked() float64 {
	var total float64
	for _, s := range t.days {
		total += s.EstimatedRebate
	}
	return total
}

// DailySummary returns every tracked day's stats, oldest first.
func (t *Tracker) DailySummary() []DailyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]DailyStats, 0, len(t.days))
	for _, s := range t.days {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Summary renders a human-readable rebate report, grounded on
// rebate_tracker.py's print_summary; called on graceful shutdown (spec §4.6).
func (t *Tracker) Summary() string {
	days := t.DailySummary()

	var b strings.Builder
	fmt.Fprintf(&b, "Rebate summary (rate=%.1fbps)\n", t.rateBps)
	if len(days) == 0 {
		b.WriteString("  no maker fills recorded\n")
		return b.String()
	}

	var totalVolume, totalRebate float64
	var totalFills int
	for _, d := range days {
		fmt.Fprintf(&b, "  %s  volume=%.2f  fills=%d  rebate≈%.4f\n",
			d.Date, d.MakerVolume, d.FillCount, d.EstimatedRebate)
		totalVolume += d.MakerVolume
		totalRebate += d.EstimatedRebate
		totalFills += d.FillCount
	}
	fmt.Fprintf(&b, "  total: volume=%.2f  fills=%d  rebate≈%.4f\n", totalVolume, totalFills, totalRebate)
	return b.String()
}

// ExportState returns the day-keyed map for persistence.
func (t *Tracker) ExportState() map[string]DailyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]DailyStats, len(t.days))
	for k, v := range t.days {
		out[k] = *v
	}
	return out
}

// LoadState replaces the tracker's state wholesale (used at startup).
func (t *Tracker) LoadState(days map[string]DailyStats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.days = make(map[string]*DailyStats, len(days))
	for k, v := range days {
		cp := v
		t.days[k] = &cp
	}
}

var (
	// RebateVolumeTotal tracks cumulative maker volume across the process lifetime.
	RebateVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmaker_rebate_maker_volume_usdc_total",
		Help: "Cumulative maker notional volume in USDC",
	})

	// RebateEstimateTotal tracks the current total estimated rebate.
	RebateEstimateTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmaker_rebate_estimate_usdc",
		Help: "Current cumulative estimated rebate in USDC",
	})
)
