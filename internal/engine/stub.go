package engine

import (
	"fmt"

	"chartsight/internal/analysis"
)

// stubPlan is the fail-safe hold response used when no provider key is
// configured or every decision attempt produced unusable output.
func stubPlan(imageCount int, meta Meta, providers analysis.ProviderInfo) *analysis.Plan {
	market := meta.Market
	if m, ok := analysis.ParseMarket(market); !ok || market == "" {
		market = string(m)
	}
	timeframe := meta.Timeframe
	if timeframe == "" {
		timeframe = "15m"
	}
	horizon := analysis.HorizonIntraday
	switch meta.Horizon {
	case analysis.HorizonScalp, analysis.HorizonIntraday, analysis.Horizon1to3d, analysis.HorizonSwing:
		horizon = meta.Horizon
	}
	return &analysis.Plan{
		Decision: analysis.DecisionHold,
		Horizon:  horizon,
		Extracted: analysis.Extracted{
			Ticker:    meta.Ticker,
			Market:    market,
			Timeframe: timeframe,
		},
		Levels: analysis.Levels{
			SR: analysis.SupportResistance{
				Support:    []float64{},
				Resistance: []float64{},
			},
		},
		Orderbook: analysis.Orderbook{
			Levels:   []analysis.OrderbookLevel{},
			Pressure: analysis.PressureNeutral,
		},
		Rationale: []string{
			"fallback response: missing API keys or unusable model output",
			fmt.Sprintf("received images: %d", imageCount),
			"no clear edge established; standing aside",
		},
		Notes:      []string{"analysis fell back to the built-in stub response"},
		Confidence: 0.3,
		Provider:   providers.Decision,
		Providers:  &providers,
	}
}
