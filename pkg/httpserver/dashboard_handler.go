package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/internal/discovery"
	"github.com/quietridge/boxmaker/internal/state"
)

// DashboardHandler serves the bot's dashboard API, grounded on the original
// bot's DashboardAPI (/api/stats, /api/fills, /api/positions, /api/markets).
type DashboardHandler struct {
	stateManager *state.Manager
	discovery    *discovery.Service
	logger       *zap.Logger
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(sm *state.Manager, disc *discovery.Service, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{stateManager: sm, discovery: disc, logger: logger}
}

func (h *DashboardHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("dashboard-response-encode-failed", zap.Error(err))
	}
}

// HandleStats returns summary statistics about the bot's accumulated state.
func (h *DashboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap := h.stateManager.Snapshot()

	h.writeJSON(w, map[string]interface{}{
		"total_maker_volume":     snap.TotalMakerVolume,
		"total_rebates_estimate": snap.TotalRebatesEstimate,
		"last_updated":           snap.LastUpdated,
		"active_markets_count":   len(h.discovery.Markets()),
		"fills_count":            len(snap.Fills),
		"positions_count":        len(snap.Positions),
	})
}

// HandleFills returns the most recent fills, capped at 100 like the original.
func (h *DashboardHandler) HandleFills(w http.ResponseWriter, r *http.Request) {
	fills := h.stateManager.Fills()

	const limit = 100
	if len(fills) > limit {
		fills = fills[len(fills)-limit:]
	}

	h.writeJSON(w, map[string]interface{}{"fills": fills})
}

// HandlePositions returns the current in-memory position map.
func (h *DashboardHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{"positions": h.stateManager.Positions()})
}

// HandleMarkets returns the set of markets currently tracked for quoting.
func (h *DashboardHandler) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	markets := h.discovery.Markets()

	out := make([]map[string]interface{}, 0, len(markets))
	for _, m := range markets {
		out = append(out, map[string]interface{}{
			"condition_id": m.ConditionID,
			"question":     m.Question,
			"yes_price":    m.YesPrice,
			"no_price":     m.NoPrice,
		})
	}

	h.writeJSON(w, map[string]interface{}{"markets": out})
}
