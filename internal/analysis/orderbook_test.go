package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawLevels(levels ...map[string]any) map[string]any {
	anyLevels := make([]any, len(levels))
	for i, lv := range levels {
		anyLevels[i] = lv
	}
	return map[string]any{"levels": anyLevels}
}

func TestNormalizeOrderbookSpreadAndPressure(t *testing.T) {
	ob := NormalizeOrderbook(rawLevels(
		map[string]any{"price": 100.0, "bid": 500.0},
		map[string]any{"price": 101.0, "ask": 400.0},
	), MarketJP)

	require.Len(t, ob.Levels, 2)
	require.NotNil(t, ob.Spread)
	assert.Equal(t, 1.0, *ob.Spread)
	require.NotNil(t, ob.Imbalance)
	assert.InDelta(t, 100.0/900.0, *ob.Imbalance, 1e-9)
	assert.Equal(t, PressureBid, ob.Pressure) // imbalance ~0.111 > 0.1
}

func TestNormalizeOrderbookDropsBadRows(t *testing.T) {
	ob := NormalizeOrderbook(rawLevels(
		map[string]any{"price": 0.0, "bid": 10.0},
		map[string]any{"price": -5.0, "ask": 10.0},
		map[string]any{"price": "nonsense"},
		map[string]any{"price": 250.0, "bid": 10.0},
	), MarketJP)

	require.Len(t, ob.Levels, 1)
	assert.Equal(t, 250.0, ob.Levels[0].Price)
	assert.Nil(t, ob.Spread) // no ask side survived
	assert.Equal(t, PressureBid, ob.Pressure)
}

func TestNormalizeOrderbookZeroesNonFiniteQuantities(t *testing.T) {
	ob := NormalizeOrderbook(rawLevels(
		map[string]any{"price": 100.0, "bid": "NaN"},
		map[string]any{"price": 101.0, "ask": "Inf", "bid": 200.0},
	), MarketJP)

	require.Len(t, ob.Levels, 2)
	assert.Equal(t, 0.0, ob.Levels[0].Bid)
	assert.Equal(t, 0.0, ob.Levels[1].Ask)
	assert.Equal(t, 200.0, ob.Levels[1].Bid)

	// The snapshot must stay JSON-encodable whatever the quantities were.
	_, err := json.Marshal(ob)
	require.NoError(t, err)
}

func TestNormalizeOrderbookMalformedInputDegrades(t *testing.T) {
	for _, raw := range []map[string]any{nil, {}, {"levels": "garbage"}} {
		ob := NormalizeOrderbook(raw, MarketUS)
		assert.Empty(t, ob.Levels)
		assert.Nil(t, ob.Spread)
		require.NotNil(t, ob.Imbalance)
		assert.Equal(t, 0.0, *ob.Imbalance)
		assert.Equal(t, PressureNeutral, ob.Pressure)
	}
}

func TestNormalizeOrderbookSnapsPrices(t *testing.T) {
	ob := NormalizeOrderbook(rawLevels(
		map[string]any{"price": 3_497.9, "bid": 100.0},
	), MarketJP)
	require.Len(t, ob.Levels, 1)
	// Rounded to 3497.9, then snapped onto the 5-yen grid.
	assert.Equal(t, 3_500.0, ob.Levels[0].Price)
	assert.Equal(t, 100.0, ob.Levels[0].Bid) // quantities pass through untouched
}

func TestNormalizeOrderbookAskPressure(t *testing.T) {
	ob := NormalizeOrderbook(rawLevels(
		map[string]any{"price": 100.0, "bid": 100.0},
		map[string]any{"price": 101.0, "ask": 500.0},
	), MarketUS)
	assert.Equal(t, PressureAsk, ob.Pressure)
}

func TestEnforceOrderbookTicksCountsAdjustments(t *testing.T) {
	ob := Orderbook{Levels: []OrderbookLevel{
		{Price: 1_000},   // already on grid
		{Price: 1_000.4}, // snaps to 1000
		{Price: 3_002},   // snaps to 3000 on the 5-yen band
	}}
	out, adjusted := EnforceOrderbookTicks(ob, MarketJP)
	assert.Equal(t, 2, adjusted)
	assert.Equal(t, []float64{1_000, 1_000, 3_000},
		[]float64{out.Levels[0].Price, out.Levels[1].Price, out.Levels[2].Price})
}

func TestAnalyzeOrderbookGapsRegular(t *testing.T) {
	ob := Orderbook{Levels: []OrderbookLevel{
		{Price: 100}, {Price: 101}, {Price: 102}, {Price: 103},
	}}
	report := AnalyzeOrderbookGaps(ob, MarketJP)
	assert.False(t, report.Irregular)
	assert.Equal(t, []float64{1}, report.Gaps)
}

func TestAnalyzeOrderbookGapsIrregular(t *testing.T) {
	ob := Orderbook{Levels: []OrderbookLevel{
		{Price: 100}, {Price: 101}, {Price: 103}, {Price: 110},
	}}
	report := AnalyzeOrderbookGaps(ob, MarketJP)
	assert.True(t, report.Irregular)
	assert.Equal(t, []float64{1, 2, 7}, report.Gaps)
}

func TestAnalyzeOrderbookGapsTooFewPrices(t *testing.T) {
	ob := Orderbook{Levels: []OrderbookLevel{{Price: 100}, {Price: 101}, {Price: 100}}}
	report := AnalyzeOrderbookGaps(ob, MarketJP) // only two distinct prices
	assert.False(t, report.Irregular)
	assert.Empty(t, report.Gaps)
}

func TestAnalyzeOrderbookGapsTwoMagnitudesStillRegular(t *testing.T) {
	// Tick plus one sparse multiple of it: acceptable.
	ob := Orderbook{Levels: []OrderbookLevel{
		{Price: 100}, {Price: 101}, {Price: 103}, {Price: 104},
	}}
	report := AnalyzeOrderbookGaps(ob, MarketJP)
	assert.False(t, report.Irregular)
	assert.Len(t, report.Gaps, 2)
}
