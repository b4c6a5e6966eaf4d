package analysis

// Decision and horizon vocabularies. Anything outside these sets is
// coerced to the fail-safe default by ValidateDecision.
const (
	DecisionBuy  = "buy"
	DecisionSell = "sell"
	DecisionHold = "hold"
)

const (
	HorizonScalp    = "scalp"
	HorizonIntraday = "intraday"
	Horizon1to3d    = "1-3d"
	HorizonSwing    = "swing"
)

// Orderbook pressure labels derived from imbalance.
const (
	PressureBid     = "bid"
	PressureAsk     = "ask"
	PressureNeutral = "neutral"
)

// SupportResistance holds cleaned structural levels, each slice
// deduplicated, finite and ascending.
type SupportResistance struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// OrderbookLevel is one row of a quote board. Bid and ask quantities
// default to zero when the extractor could not read them.
type OrderbookLevel struct {
	Price float64 `json:"price"`
	Bid   float64 `json:"bid,omitempty"`
	Ask   float64 `json:"ask,omitempty"`
}

// Orderbook is a normalized board snapshot plus derived metrics.
// Spread stays nil when either side of the book is empty.
type Orderbook struct {
	Levels    []OrderbookLevel `json:"levels"`
	Spread    *float64         `json:"spread"`
	Imbalance *float64         `json:"imbalance"`
	Pressure  string           `json:"pressure"`
}

// Extracted carries instrument metadata read off the screenshot.
type Extracted struct {
	Ticker    string `json:"ticker,omitempty"`
	Market    string `json:"market"`
	Timeframe string `json:"timeframe,omitempty"`
	UISource  string `json:"uiSource,omitempty"`
}

// Levels groups the proposed trade prices with the structural levels
// they are checked against.
type Levels struct {
	Entry *float64          `json:"entry,omitempty"`
	SL    *float64          `json:"sl,omitempty"`
	TP    []float64         `json:"tp,omitempty"`
	SR    SupportResistance `json:"sr"`
}

// Scenario is a conditional sub-plan. It is carried through as-is and
// never validated by this package.
type Scenario struct {
	Conditions string    `json:"conditions,omitempty"`
	Entry      *float64  `json:"entry,omitempty"`
	SL         *float64  `json:"sl,omitempty"`
	TP         []float64 `json:"tp,omitempty"`
	Rationale  []string  `json:"rationale,omitempty"`
	RR         *float64  `json:"rr,omitempty"`
}

type Scenarios struct {
	Base *Scenario `json:"base,omitempty"`
	Bull *Scenario `json:"bull,omitempty"`
	Bear *Scenario `json:"bear,omitempty"`
}

// ProviderInfo records which upstream models produced the extraction
// and the decision.
type ProviderInfo struct {
	Vision   string `json:"vision"`
	Decision string `json:"decision"`
}

// Plan is the validated analysis result returned to callers. Every
// field is populated with a safe default regardless of how malformed
// the provider output was.
type Plan struct {
	Decision   string        `json:"decision"`
	Horizon    string        `json:"horizon"`
	Rationale  []string      `json:"rationale"`
	Levels     Levels        `json:"levels"`
	Orderbook  Orderbook     `json:"orderbook"`
	Extracted  Extracted     `json:"extracted"`
	Confidence float64       `json:"confidence"`
	Notes      []string      `json:"notes"`
	Scenarios  *Scenarios    `json:"scenarios,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Providers  *ProviderInfo `json:"providers,omitempty"`
}

func floatPtr(v float64) *float64 { return &v }
