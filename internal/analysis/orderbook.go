package analysis

import (
	"sort"

	"github.com/shopspring/decimal"
)

// pressureThreshold splits imbalance into bid/ask/neutral. Fixed by
// design; it must not vary per market.
const pressureThreshold = 0.1

// NormalizeOrderbook cleans a raw board extraction and computes the
// derived spread, imbalance and pressure metrics. Malformed input
// degrades to empty levels with neutral defaults; it never errors.
func NormalizeOrderbook(raw map[string]any, market Market) Orderbook {
	var cleaned []OrderbookLevel
	for _, item := range coerceSlice(raw["levels"]) {
		row := coerceMap(item)
		price, ok := coerceFloat(row["price"])
		if !ok || price <= 0 {
			continue
		}
		// Quantities default to 0 when absent or non-finite; a NaN here
		// would poison every JSON encode downstream.
		bid, bidOK := coerceFloat(row["bid"])
		if !bidOK {
			bid = 0
		}
		ask, askOK := coerceFloat(row["ask"])
		if !askOK {
			ask = 0
		}
		// Round to market precision before snapping so the band lookup
		// sees a near-tick value and cannot drift twice.
		price = SnapToTick(RoundByMarket(price, market), market)
		cleaned = append(cleaned, OrderbookLevel{Price: price, Bid: bid, Ask: ask})
	}

	var (
		bestBid, bestAsk float64
		hasBid, hasAsk   bool
		bidSum, askSum   float64
	)
	for _, lv := range cleaned {
		if lv.Bid > 0 {
			bidSum += lv.Bid
			if !hasBid || lv.Price > bestBid {
				bestBid = lv.Price
				hasBid = true
			}
		}
		if lv.Ask > 0 {
			askSum += lv.Ask
			if !hasAsk || lv.Price < bestAsk {
				bestAsk = lv.Price
				hasAsk = true
			}
		}
	}

	ob := Orderbook{Levels: cleaned, Pressure: PressureNeutral}
	if hasBid && hasAsk {
		spread := RoundByMarket(bestAsk-bestBid, market)
		if spread < 0 {
			spread = 0
		}
		ob.Spread = floatPtr(spread)
	}
	imbalance := 0.0
	if bidSum+askSum > 0 {
		imbalance = (bidSum - askSum) / (bidSum + askSum)
	}
	ob.Imbalance = floatPtr(imbalance)
	ob.Pressure = pressureFor(imbalance)
	return ob
}

func pressureFor(imbalance float64) string {
	switch {
	case imbalance > pressureThreshold:
		return PressureBid
	case imbalance < -pressureThreshold:
		return PressureAsk
	default:
		return PressureNeutral
	}
}

// EnforceOrderbookTicks re-snaps every level price to the market grid
// and reports how many rows needed adjusting. The count feeds a
// user-visible correction note.
func EnforceOrderbookTicks(ob Orderbook, market Market) (Orderbook, int) {
	adjusted := 0
	out := make([]OrderbookLevel, len(ob.Levels))
	for i, lv := range ob.Levels {
		snapped := SnapToTick(lv.Price, market)
		if isFinite(lv.Price) && snapped != lv.Price {
			adjusted++
		}
		lv.Price = snapped
		out[i] = lv
	}
	ob.Levels = out
	return ob, adjusted
}

// GapReport describes the spacing structure of a board's price column.
type GapReport struct {
	Irregular bool      `json:"irregular"`
	Gaps      []float64 `json:"gaps"`
}

// AnalyzeOrderbookGaps flags a board whose consecutive price gaps show
// more than two distinct magnitudes. A regular book steps by the tick
// size, occasionally skipping to a multiple where quotes are sparse;
// anything beyond that suggests display or latency artifacts. Fewer
// than three distinct prices is too little data to judge.
func AnalyzeOrderbookGaps(ob Orderbook, market Market) GapReport {
	seen := make(map[float64]struct{}, len(ob.Levels))
	prices := make([]float64, 0, len(ob.Levels))
	for _, lv := range ob.Levels {
		if !isFinite(lv.Price) {
			continue
		}
		if _, dup := seen[lv.Price]; dup {
			continue
		}
		seen[lv.Price] = struct{}{}
		prices = append(prices, lv.Price)
	}
	sort.Float64s(prices)
	if len(prices) < 3 {
		return GapReport{Irregular: false, Gaps: []float64{}}
	}

	// Round gaps to 6 decimals to keep float noise from minting
	// phantom "distinct" spacings.
	uniq := make(map[float64]struct{})
	gaps := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		g, _ := decimal.NewFromFloat(prices[i] - prices[i-1]).Round(6).Float64()
		if g < 0 {
			g = -g
		}
		if _, dup := uniq[g]; dup {
			continue
		}
		uniq[g] = struct{}{}
		gaps = append(gaps, g)
	}
	return GapReport{Irregular: len(gaps) > 2, Gaps: gaps}
}
