// Package boxtypes holds the box market-maker's domain model: the shapes
// every other package (breakeven, inventory, quote, orderbook, trading)
// shares, independent of how the exchange encodes them on the wire.
package boxtypes

import (
	"math"
	"time"
)

// Outcome identifies one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Side is an order side. The bot only ever submits BUY orders (spec §4.3);
// SELL exists so fills and positions from the exchange can be represented.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarketInfo describes one binary market the bot is willing to quote on.
type MarketInfo struct {
	ConditionID  string
	Question     string
	YesTokenID   string
	NoTokenID    string
	MinTickSize  float64
	Active       bool
	YesPrice     float64
	NoPrice      float64
}

// InPriceRange reports whether both outcome prices sit within [min, max].
// Supplements the active/closed/token-count eligibility filter with the
// price-band eligibility check the original bot applied at discovery time.
func (m MarketInfo) InPriceRange(min, max float64) bool {
	return m.YesPrice >= min && m.YesPrice <= max &&
		m.NoPrice >= min && m.NoPrice <= max
}

// OrderBookLevel is one price/size pair in a book side.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// NewLevel builds a level, rounding price and size to 4 decimal places the
// way the feed's book/price_change handlers expect (spec §4.4).
func NewLevel(price, size float64) OrderBookLevel {
	return OrderBookLevel{
		Price: Round4(price),
		Size:  Round4(size),
	}
}

// OrderBook is the full L2 book for one token: bids sorted descending,
// asks sorted ascending.
type OrderBook struct {
	TokenID   string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
}

// BestBid returns the highest bid level, or zero value and false if empty.
func (b *OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(b.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask level, or zero value and false if empty.
func (b *OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(b.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Asks[0], true
}

// Midpoint is the average of best bid and best ask, or 0 if either side is empty.
func (b *OrderBook) Midpoint() float64 {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return (bid.Price + ask.Price) / 2
}

// Spread is best ask minus best bid, or 0 if either side is empty.
func (b *OrderBook) Spread() float64 {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return ask.Price - bid.Price
}

// Position tracks one token's accumulated quantity and cost basis.
type Position struct {
	TokenID   string  `json:"token_id"`
	Outcome   Outcome `json:"outcome"`
	Quantity  float64 `json:"quantity"`
	TotalCost float64 `json:"total_cost"`
}

// AvgCost is total cost divided by quantity, or 0 when flat.
func (p *Position) AvgCost() float64 {
	if p.Quantity == 0 {
		return 0
	}
	return p.TotalCost / p.Quantity
}

// AddFill folds a BUY fill into the running quantity/cost basis.
func (p *Position) AddFill(qty, price float64) {
	p.Quantity += qty
	p.TotalCost += qty * price
}

// MarketPosition pairs the YES and NO positions for one market, the unit
// the breakeven calculator and inventory tracker reason about.
type MarketPosition struct {
	ConditionID string   `json:"condition_id"`
	YesPosition Position `json:"yes_position"`
	NoPosition  Position `json:"no_position"`
}

// SkewRatio is YES quantity divided by NO quantity. 0/0 is defined as 1.0
// (balanced-by-definition), and x/0 with x>0 is +Inf (maximally YES-heavy).
func (mp *MarketPosition) SkewRatio() float64 {
	yes, no := mp.YesPosition.Quantity, mp.NoPosition.Quantity
	if yes == 0 && no == 0 {
		return 1.0
	}
	if no == 0 {
		return math.Inf(1)
	}
	return yes / no
}

// InverseSkewRatio is NO quantity divided by YES quantity, with the same
// zero-handling convention as SkewRatio.
func (mp *MarketPosition) InverseSkewRatio() float64 {
	yes, no := mp.YesPosition.Quantity, mp.NoPosition.Quantity
	if yes == 0 && no == 0 {
		return 1.0
	}
	if yes == 0 {
		return math.Inf(1)
	}
	return no / yes
}

// BoxCost is the combined average cost of one matched YES/NO share pair.
func (mp *MarketPosition) BoxCost() float64 {
	return mp.YesPosition.AvgCost() + mp.NoPosition.AvgCost()
}

// TotalUSDCSpent sums the cost basis of both legs.
func (mp *MarketPosition) TotalUSDCSpent() float64 {
	return mp.YesPosition.TotalCost + mp.NoPosition.TotalCost
}

// Quote is a single resting bid the trading loop wants to place or has placed.
type Quote struct {
	TokenID string  `json:"token_id"`
	Outcome Outcome `json:"outcome"`
	Side    Side    `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	OrderID string  `json:"order_id,omitempty"`
}

// IsActive reports whether the quote has an exchange-assigned order id.
func (q Quote) IsActive() bool {
	return q.OrderID != ""
}

// Fill is a single maker execution reported by the exchange or user feed.
type Fill struct {
	OrderID   string    `json:"order_id"`
	TokenID   string    `json:"token_id"`
	Outcome   Outcome   `json:"outcome"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Maker     bool      `json:"maker"`
}

// Notional is price times size.
func (f Fill) Notional() float64 {
	return f.Price * f.Size
}

// maxFillHistory bounds BotState.Fills the way the Python prototype trims
// its persisted fill list, so the state file never grows unbounded.
const maxFillHistory = 1000

// BotState is the full snapshot persisted to disk every save interval.
type BotState struct {
	Positions            map[string]*MarketPosition `json:"positions"`
	OpenOrders           map[string]Quote           `json:"open_orders"`
	Fills                []Fill                     `json:"fills"`
	TotalMakerVolume     float64                    `json:"total_maker_volume"`
	TotalRebatesEstimate float64                     `json:"total_rebates_estimate"`
	LastUpdated          time.Time                  `json:"last_updated"`
}

// AppendFill appends a fill and trims history to maxFillHistory, matching
// BotState.to_dict's `fills[-1000:]` behavior in the original bot.
func (s *BotState) AppendFill(f Fill) {
	s.Fills = append(s.Fills, f)
	if len(s.Fills) > maxFillHistory {
		s.Fills = s.Fills[len(s.Fills)-maxFillHistory:]
	}
}
