package boxtypes

import "github.com/shopspring/decimal"

// Round4 rounds to 4 decimal places, the precision OrderBookLevel and Quote
// prices are stored at (spec §4.4). Backed by decimal.Decimal rather than a
// float scale-and-round because this runs on every book update and every
// quote cycle (spec §9's 0.5s cadence) — float drift compounds across that
// many calls in a way a single rounding never would.
func Round4(v float64) float64 {
	d, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return d
}

// SnapToTick rounds price to the nearest multiple of tick, matching the
// quote generator's `round(p/tick)*tick` grid-snap (quote_generator.py).
func SnapToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	ticks := p.Div(t).Round(0)
	snapped, _ := ticks.Mul(t).Float64()
	return snapped
}

// FloorToTick rounds price down to the nearest multiple of tick, used to
// enforce the breakeven ceiling: quote price must never exceed the cap
// (quote_generator.py's `floor(p_cap / tick) * tick`, not a nearest-snap).
func FloorToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	ticks := p.Div(t).Floor()
	floored, _ := ticks.Mul(t).Float64()
	return floored
}

// ClampPrice clamps price into [min, max].
func ClampPrice(price, min, max float64) float64 {
	if price < min {
		return min
	}
	if price > max {
		return max
	}
	return price
}

// Round2 rounds to 2 decimal places, the precision position-limit resize
// uses for share sizes (quote_generator.py's adjust_size_for_position_limit).
func Round2(v float64) float64 {
	d, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return d
}
