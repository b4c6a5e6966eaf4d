// Package prompt holds the system prompts and temperature profiles for
// the two provider calls: vision extraction and decision summarization.
package prompt

import "strings"

const visionExtraction = `You are a vision extractor specialized in trading screenshots (SBI/Rakuten/Matsui/TradingView). Identify:
- type: chart / orderbook / mixed
- market, ticker, timeframe
- support/resistance candidates
- orderbook spread, imbalance, pressure, and visible levels {price,bid,ask}

Return ONLY strict JSON with keys: { "extracted": {ticker, market, timeframe}, "levels": {"sr": {support:number[], resistance:number[]}}, "orderbook": {spread:number|null, imbalance:number|null, pressure:"bid"|"ask"|"neutral", levels:{price:number,bid?:number,ask?:number}[] } }.
Use null for unknown numeric fields. No extra text.`

const decisionSummary = `You are an analyst. Using extracted features (trend, SR, volume, orderbook pressure), output a decision JSON
with fields: decision, horizon, rationale[<=5], levels{entry,sl,tp[],sr}, confidence, notes[], and scenarios.
scenarios must include base, bull, bear each with: {conditions, entry, sl, tp[], rationale[], rr} (omit unknowns).
Only recommend buy/sell when trend aligns with confirming signals; otherwise hold. Include invalidation in sl.
Return ONLY JSON as specified.`

// uiHints sharpen extraction for a recognized broker/platform layout.
var uiHints = map[string]string{
	"SBI":         "Layout hint (SBI): orderbook table centers the price column; bid quantities sit left (blue/green), ask quantities right (red). Column headers and chart labels are Japanese; mind small-font decimals.",
	"Rakuten":     "Layout hint (Rakuten): dense fonts; best bid/ask rows carry thick borders and a totals row; mini-charts may overlay moving averages.",
	"Matsui":      "Layout hint (Matsui): light theme; board rows separated by subtle gray lines; the price column is labeled explicitly, spread is closest ask minus bid.",
	"TradingView": "Layout hint (TradingView): ticker watermark on the chart; indicator legends (EMA, RSI, MACD) near top-left; OHLC readout along the top bar.",
}

// Profile tunes prompt strictness and sampling temperature.
type Profile string

const (
	ProfileDefault Profile = "default"
	ProfileStrict  Profile = "strict"
	ProfileVerbose Profile = "verbose"
)

// Set is the resolved prompt pair for one analysis run.
type Set struct {
	Vision       string
	Decision     string
	VisionTemp   float64
	DecisionTemp float64
}

// For resolves a profile name (case-insensitive, unknown → default).
func For(name string) Set {
	switch Profile(strings.ToLower(strings.TrimSpace(name))) {
	case ProfileStrict:
		return Set{
			Vision:       visionExtraction + "\nAlways respond with strict JSON; avoid estimates unless labeled null.",
			Decision:     decisionSummary + "\nAvoid speculative numbers; prefer hold on ambiguity.",
			VisionTemp:   0.1,
			DecisionTemp: 0.2,
		}
	case ProfileVerbose:
		return Set{
			Vision:       visionExtraction + "\nYou may include more candidate SR levels if clearly visible in the UI.",
			Decision:     decisionSummary + "\nInclude richer rationale; propose scenarios when plausible.",
			VisionTemp:   0.25,
			DecisionTemp: 0.35,
		}
	default:
		return Set{
			Vision:       visionExtraction,
			Decision:     decisionSummary,
			VisionTemp:   0.2,
			DecisionTemp: 0.3,
		}
	}
}

// UIHint returns the platform-specific extraction hint, empty when the
// UI source is unknown.
func UIHint(source string) string {
	return uiHints[strings.TrimSpace(source)]
}
