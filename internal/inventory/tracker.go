// Package inventory tracks YES/NO positions per market and the skew
// between them, grounded on inventory_tracker.py.
package inventory

import (
	"sync"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"go.uber.org/zap"
)

// Tracker holds the box positions for every market the bot has quoted,
// guarded by a single mutex the way internal/orderbook/manager.go guards
// its book map: copy out under lock, then read the copy.
type Tracker struct {
	mu            sync.RWMutex
	positions     map[string]*boxtypes.MarketPosition
	skewThreshold float64
	logger        *zap.Logger
}

// New builds a Tracker. skewThreshold defaults to 1.2 when zero.
func New(skewThreshold float64, logger *zap.Logger) *Tracker {
	if skewThreshold == 0 {
		skewThreshold = 1.2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		positions:     make(map[string]*boxtypes.MarketPosition),
		skewThreshold: skewThreshold,
		logger:        logger,
	}
}

// GetOrCreate returns a copy of the MarketPosition for conditionID, creating
// an empty one (seeded with the leg token ids) if absent.
func (t *Tracker) GetOrCreate(conditionID, yesTokenID, noTokenID string) *boxtypes.MarketPosition {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[conditionID]
	if !ok {
		pos = &boxtypes.MarketPosition{
			ConditionID: conditionID,
			YesPosition: boxtypes.Position{TokenID: yesTokenID, Outcome: boxtypes.OutcomeYes},
			NoPosition:  boxtypes.Position{TokenID: noTokenID, Outcome: boxtypes.OutcomeNo},
		}
		t.positions[conditionID] = pos
	}
	cp := *pos
	return &cp
}

// GetPosition returns a copy of the position for conditionID, or nil if unknown.
func (t *Tracker) GetPosition(conditionID string) *boxtypes.MarketPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[conditionID]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

// RecordFill folds a BUY fill into the relevant leg's position. Fills for
// an unknown market or non-BUY side are logged and ignored — the bot only
// ever accumulates via its own resting bids.
func (t *Tracker) RecordFill(conditionID string, fill boxtypes.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[conditionID]
	if !ok {
		t.logger.Warn("fill-for-unknown-market", zap.String("condition-id", conditionID))
		return
	}
	if fill.Side != boxtypes.SideBuy {
		t.logger.Warn("non-buy-fill-ignored", zap.String("side", string(fill.Side)))
		return
	}

	if fill.Outcome == boxtypes.OutcomeYes {
		pos.YesPosition.AddFill(fill.Size, fill.Price)
		t.logger.Info("yes-fill-recorded",
			zap.Float64("size", fill.Size),
			zap.Float64("price", fill.Price),
			zap.Float64("new-avg", pos.YesPosition.AvgCost()),
			zap.Float64("total-qty", pos.YesPosition.Quantity))
	} else {
		pos.NoPosition.AddFill(fill.Size, fill.Price)
		t.logger.Info("no-fill-recorded",
			zap.Float64("size", fill.Size),
			zap.Float64("price", fill.Price),
			zap.Float64("new-avg", pos.NoPosition.AvgCost()),
			zap.Float64("total-qty", pos.NoPosition.Quantity))
	}

	t.logSkew(pos)
}

// GetSkewRatio returns the YES/NO quantity ratio for a market, or 1.0
// (balanced) if the market is unknown.
func (t *Tracker) GetSkewRatio(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[conditionID]
	if !ok {
		return 1.0
	}
	return pos.SkewRatio()
}

// IsYesHeavy reports whether the skew ratio exceeds the configured threshold.
func (t *Tracker) IsYesHeavy(conditionID string) bool {
	return t.GetSkewRatio(conditionID) > t.skewThreshold
}

// IsNoHeavy reports whether the inverse skew ratio exceeds the configured
// threshold.
func (t *Tracker) IsNoHeavy(conditionID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[conditionID]
	if !ok {
		return false
	}
	return pos.InverseSkewRatio() > t.skewThreshold
}

// AdjustmentDirection returns (yesAdjustmentTicks, noAdjustmentTicks) based
// on current skew: YES-heavy discourages YES and encourages NO, NO-heavy
// the reverse, balanced applies no adjustment.
func (t *Tracker) AdjustmentDirection(conditionID string) (int, int) {
	if t.IsYesHeavy(conditionID) {
		return -1, 1
	}
	if t.IsNoHeavy(conditionID) {
		return 1, -1
	}
	return 0, 0
}

// GetYesQuantity returns total YES quantity for a market (0 if unknown).
func (t *Tracker) GetYesQuantity(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.YesPosition.Quantity
	}
	return 0
}

// GetNoQuantity returns total NO quantity for a market (0 if unknown).
func (t *Tracker) GetNoQuantity(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.NoPosition.Quantity
	}
	return 0
}

// GetYesAvgCost returns the average YES cost for a market (0 if unknown).
func (t *Tracker) GetYesAvgCost(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.YesPosition.AvgCost()
	}
	return 0
}

// GetNoAvgCost returns the average NO cost for a market (0 if unknown).
func (t *Tracker) GetNoAvgCost(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.NoPosition.AvgCost()
	}
	return 0
}

// GetBoxCost returns the current combined average cost for a market.
func (t *Tracker) GetBoxCost(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.BoxCost()
	}
	return 0
}

// GetTotalSpent returns total USDC spent on a market (0 if unknown).
func (t *Tracker) GetTotalSpent(conditionID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[conditionID]; ok {
		return pos.TotalUSDCSpent()
	}
	return 0
}

// GetAllSpent sums total USDC spent across every market.
func (t *Tracker) GetAllSpent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, pos := range t.positions {
		total += pos.TotalUSDCSpent()
	}
	return total
}

// LoadFromPositions replaces the tracker's positions with a persisted set,
// used on startup when restoring from state.
func (t *Tracker) LoadFromPositions(positions map[string]*boxtypes.MarketPosition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions = positions
	t.logger.Info("positions-loaded", zap.Int("count", len(positions)))
}

// ExportPositions returns a shallow copy of the position map for persistence.
func (t *Tracker) ExportPositions() map[string]*boxtypes.MarketPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*boxtypes.MarketPosition, len(t.positions))
	for k, v := range t.positions {
		out[k] = v
	}
	return out
}

func (t *Tracker) logSkew(pos *boxtypes.MarketPosition) {
	ratio := pos.SkewRatio()
	status := "BALANCED"
	if ratio > t.skewThreshold {
		status = "YES_HEAVY"
	} else if ratio < 1/t.skewThreshold {
		status = "NO_HEAVY"
	}
	t.logger.Debug("skew",
		zap.Float64("yes-qty", pos.YesPosition.Quantity),
		zap.Float64("no-qty", pos.NoPosition.Quantity),
		zap.Float64("ratio", ratio),
		zap.Float64("box-cost", pos.BoxCost()),
		zap.String("status", status))
}
