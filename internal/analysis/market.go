package analysis

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Market selects the price precision and tick schedule used when
// normalizing extracted numbers. It is always passed explicitly; the
// package keeps no ambient market state.
type Market string

const (
	MarketJP     Market = "JP"
	MarketUS     Market = "US"
	MarketCrypto Market = "CRYPTO"
)

// ParseMarket maps an untrusted market string to a Market. Unknown
// values fall back to JP and report ok=false so the caller can decide
// whether to reject the request or proceed with the default.
func ParseMarket(s string) (Market, bool) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case MarketJP:
		return MarketJP, true
	case MarketUS:
		return MarketUS, true
	case MarketCrypto:
		return MarketCrypto, true
	default:
		return MarketJP, false
	}
}

func (m Market) Valid() bool {
	return m == MarketJP || m == MarketUS || m == MarketCrypto
}

// precision: JP quotes carry one decimal place, US and crypto two.
func (m Market) precision() int32 {
	if m == MarketJP {
		return 1
	}
	return 2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RoundByMarket rounds half away from zero at the market's precision.
// Non-finite inputs pass through unchanged so callers can filter them.
func RoundByMarket(v float64, market Market) float64 {
	if !isFinite(v) {
		return v
	}
	out, _ := decimal.NewFromFloat(v).Round(market.precision()).Float64()
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
