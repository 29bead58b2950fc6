// Package quote turns book state, breakeven ceilings, and skew adjustment
// directions into concrete resting bids, grounded on quote_generator.py.
package quote

import (
	"github.com/quietridge/boxmaker/pkg/boxtypes"
	"go.uber.org/zap"
)

// Config holds the fixed parameters the generator needs every cycle.
type Config struct {
	TickSize     float64
	BaseSize     float64
	MinPrice     float64
	MaxPrice     float64
}

// Generator produces BUY quotes for both legs of a market, adjusted for
// inventory skew and clamped to the breakeven ceiling.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Generator.
func New(cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Side is the inputs for one leg of GenerateQuotes.
type Side struct {
	TokenID        string
	Outcome        boxtypes.Outcome
	Book           *boxtypes.OrderBook
	MaxBid         float64
	TickAdjustment int
}

// GenerateQuotes produces a quote for each side whose book has a best bid
// and whose computed price survives the price band and breakeven ceiling.
// A side with no resulting quote is omitted, not zero-valued, mirroring
// _generate_single_quote's `return None`.
func (g *Generator) GenerateQuotes(sides ...Side) []boxtypes.Quote {
	quotes := make([]boxtypes.Quote, 0, len(sides))
	for _, s := range sides {
		q, ok := g.generateSingle(s)
		if ok {
			quotes = append(quotes, q)
		}
	}
	return quotes
}

func (g *Generator) generateSingle(s Side) (boxtypes.Quote, bool) {
	if s.Book == nil {
		return boxtypes.Quote{}, false
	}
	bestBid, ok := s.Book.BestBid()
	if !ok {
		return boxtypes.Quote{}, false
	}

	basePrice := bestBid.Price - g.cfg.TickSize

	var quotePrice float64
	switch {
	case s.TickAdjustment > 0:
		quotePrice = bestBid.Price
	case s.TickAdjustment < 0:
		quotePrice = basePrice + float64(s.TickAdjustment)*g.cfg.TickSize
	default:
		quotePrice = basePrice
	}

	quotePrice = boxtypes.SnapToTick(quotePrice, g.cfg.TickSize)

	if quotePrice > s.MaxBid {
		quotePrice = boxtypes.FloorToTick(s.MaxBid, g.cfg.TickSize)
	}

	if quotePrice <= 0 || quotePrice < g.cfg.MinPrice || quotePrice > g.cfg.MaxPrice {
		g.logger.Debug("quote-rejected-out-of-band",
			zap.String("token-id", s.TokenID),
			zap.Float64("price", quotePrice),
			zap.Float64("min", g.cfg.MinPrice),
			zap.Float64("max", g.cfg.MaxPrice))
		return boxtypes.Quote{}, false
	}

	return boxtypes.Quote{
		TokenID: s.TokenID,
		Outcome: s.Outcome,
		Side:    boxtypes.SideBuy,
		Price:   boxtypes.Round4(quotePrice),
		Size:    g.cfg.BaseSize,
	}, true
}

// AdjustSizeForPositionLimit shrinks quote's size so quote.Price*quote.Size
// does not push currentPositionValue past maxPosition, returning false
// (and a zero Quote) if no room remains or the resized size would be below
// the 0.1-share dust floor.
func AdjustSizeForPositionLimit(q boxtypes.Quote, currentPositionValue, maxPosition float64) (boxtypes.Quote, bool) {
	remaining := maxPosition - currentPositionValue
	if remaining <= 0 {
		return boxtypes.Quote{}, false
	}

	if q.Price*q.Size <= remaining {
		return q, true
	}

	newSize := boxtypes.Round2(remaining / q.Price)
	if newSize < 0.1 {
		return boxtypes.Quote{}, false
	}
	q.Size = newSize
	return q, true
}
