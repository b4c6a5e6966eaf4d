package analysis

import "github.com/shopspring/decimal"

// jpTickBands approximates the TSE tick schedule. Bands are half-open
// on the upper bound and evaluated in ascending order; keep the
// thresholds as-is even where the real regulatory table differs, since
// downstream output parity depends on them.
var jpTickBands = []struct {
	below float64
	tick  float64
}{
	{3_000, 1},
	{5_000, 5},
	{30_000, 10},
	{50_000, 50},
	{300_000, 100},
	{500_000, 500},
	{3_000_000, 1_000},
	{5_000_000, 5_000},
}

// TickSizeForMarket returns the grid step for a price on the given
// market. US and crypto venues quote a flat 0.01.
func TickSizeForMarket(market Market, price float64) float64 {
	if market == MarketUS || market == MarketCrypto {
		return 0.01
	}
	for _, b := range jpTickBands {
		if price < b.below {
			return b.tick
		}
	}
	return 10_000
}

// SnapToTick rounds a price to the nearest valid tick, half away from
// zero. The band lookup uses the unsnapped input, so snapping an
// already-snapped value is a no-op.
func SnapToTick(value float64, market Market) float64 {
	if !isFinite(value) {
		return value
	}
	tick := decimal.NewFromFloat(TickSizeForMarket(market, value))
	out, _ := decimal.NewFromFloat(value).Div(tick).Round(0).Mul(tick).Float64()
	return out
}
