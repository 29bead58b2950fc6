// Package breakeven implements the stateless box market-maker math: how
// high a bid can go on one leg without pushing the combined YES+NO cost
// past the breakeven target, grounded on breakeven_calculator.py.
package breakeven

import (
	"math"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"go.uber.org/zap"
)

const (
	minPrice = 0.01
	maxPrice = 0.99
)

// Calculator derives max bid prices that keep the projected box cost under
// the configured breakeven target, less a safety margin.
type Calculator struct {
	breakevenTarget float64
	safetyMargin    float64
	effectiveTarget float64
	logger          *zap.Logger
}

// New builds a Calculator. breakevenTarget defaults to 0.99 when zero;
// safetyMargin is used as given, so zero means no margin.
func New(breakevenTarget, safetyMargin float64, logger *zap.Logger) *Calculator {
	if breakevenTarget == 0 {
		breakevenTarget = 0.99
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		breakevenTarget: breakevenTarget,
		safetyMargin:    safetyMargin,
		effectiveTarget: breakevenTarget - safetyMargin,
		logger:          logger,
	}
}

// Position is the accumulated spend/qty/avg-cost triple the calculator
// needs for one leg.
type Position struct {
	TotalSpend float64
	TotalQty   float64
	AvgCost    float64
}

// MaxBid returns the highest price for newQty of outcome that keeps the
// projected box cost under the effective target, clamped to [0.01, 0.99].
// Returns 0 when there is no room left (partner leg's avg cost already at
// or above the effective target).
func (c *Calculator) MaxBid(outcome boxtypes.Outcome, yes, no Position, newQty float64) float64 {
	if newQty <= 0 {
		return 0.0
	}
	if outcome == boxtypes.OutcomeYes {
		return c.maxBidForLeg(yes.TotalSpend, yes.TotalQty, no.AvgCost, newQty, "YES")
	}
	return c.maxBidForLeg(no.TotalSpend, no.TotalQty, yes.AvgCost, newQty, "NO")
}

func (c *Calculator) maxBidForLeg(totalSpend, totalQty, partnerAvgCost, newQty float64, label string) float64 {
	maxAvg := c.effectiveTarget - partnerAvgCost
	if maxAvg <= 0 {
		c.logger.Warn("no-room-for-bid",
			zap.String("side", label),
			zap.Float64("partner-avg-cost", partnerAvgCost),
			zap.Float64("effective-target", c.effectiveTarget))
		return 0.0
	}

	newTotalQty := totalQty + newQty
	maxTotalSpend := maxAvg * newTotalQty
	maxNewSpend := maxTotalSpend - totalSpend
	maxPriceVal := maxNewSpend / newQty

	maxPriceVal = math.Max(minPrice, math.Min(maxPrice, maxPriceVal))

	c.logger.Debug("max-bid-calculated",
		zap.String("side", label),
		zap.Float64("max-price", maxPriceVal),
		zap.Float64("current-spend", totalSpend),
		zap.Float64("current-qty", totalQty),
		zap.Float64("partner-avg-cost", partnerAvgCost))

	return maxPriceVal
}

// IsBidValid reports whether bidPrice for newQty of outcome stays at or
// under MaxBid.
func (c *Calculator) IsBidValid(outcome boxtypes.Outcome, bidPrice, newQty float64, yes, no Position) bool {
	max := c.MaxBid(outcome, yes, no, newQty)
	valid := bidPrice <= max
	if !valid {
		c.logger.Warn("bid-exceeds-max",
			zap.String("outcome", string(outcome)),
			zap.Float64("bid-price", bidPrice),
			zap.Float64("qty", newQty),
			zap.Float64("max-bid", max))
	}
	return valid
}

// ProjectedBoxCost computes what the combined YES+NO average cost would be
// after a hypothetical fill of newQty at bidPrice on outcome.
func (c *Calculator) ProjectedBoxCost(outcome boxtypes.Outcome, bidPrice, newQty float64, yes, no Position) float64 {
	var newAvgYes, newAvgNo float64
	if outcome == boxtypes.OutcomeYes {
		newSpendYes := yes.TotalSpend + bidPrice*newQty
		newQtyYes := yes.TotalQty + newQty
		if newQtyYes > 0 {
			newAvgYes = newSpendYes / newQtyYes
		}
		if no.TotalQty > 0 {
			newAvgNo = no.TotalSpend / no.TotalQty
		}
	} else {
		newSpendNo := no.TotalSpend + bidPrice*newQty
		newQtyNo := no.TotalQty + newQty
		if newQtyNo > 0 {
			newAvgNo = newSpendNo / newQtyNo
		}
		if yes.TotalQty > 0 {
			newAvgYes = yes.TotalSpend / yes.TotalQty
		}
	}
	return newAvgYes + newAvgNo
}

// ProfitMargin is 1.0 minus the combined YES+NO average cost: positive
// means the box resolves at a profit regardless of outcome.
func ProfitMargin(avgCostYes, avgCostNo float64) float64 {
	return 1.0 - (avgCostYes + avgCostNo)
}
