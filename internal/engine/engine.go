package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"chartsight/internal/analysis"
	"chartsight/internal/logger"
	"chartsight/internal/pkg/jsonutil"
	"chartsight/internal/prompt"
	"chartsight/internal/provider"
	"chartsight/internal/store/history"
	"chartsight/internal/uidetect"
)

// Options configures an Engine. Store is optional; a nil store
// disables history persistence.
type Options struct {
	Providers     ClientFactory
	Store         *history.Store
	DefaultMarket analysis.Market
	PromptProfile string

	// PreferProvider applies when a request names no provider.
	PreferProvider string
}

// Engine runs the full screenshot-to-plan pipeline.
type Engine struct {
	providers      ClientFactory
	store          *history.Store
	defaultMarket  analysis.Market
	promptProfile  string
	preferProvider string
}

func New(opts Options) *Engine {
	market := opts.DefaultMarket
	if !market.Valid() {
		market = analysis.MarketJP
	}
	return &Engine{
		providers:      opts.Providers,
		store:          opts.Store,
		defaultMarket:  market,
		promptProfile:  opts.PromptProfile,
		preferProvider: opts.PreferProvider,
	}
}

// NewWithFactory wires an Engine to the real provider factory.
func NewWithFactory(f *provider.Factory, opts Options) *Engine {
	opts.Providers = factoryAdapter{f: f}
	return New(opts)
}

// Analyze runs one request end to end and always returns a plan; the
// stub response covers every failure short of context cancellation.
func (e *Engine) Analyze(ctx context.Context, req Request, emit Emitter) (*analysis.Plan, error) {
	traceID := uuid.NewString()
	start := time.Now()
	e.emit(emit, "progress", progress{Pct: 5, Message: "request received"})

	market := e.resolveMarket(req.Meta.Market)
	keys := e.providers.MergeKeys(req.Keys)
	if keys.Empty() || len(req.Images) == 0 {
		logger.Warnf("[%s] analyze falling back to stub: keys=%v images=%d", traceID, !keys.Empty(), len(req.Images))
		plan := stubPlan(len(req.Images), req.Meta, analysis.ProviderInfo{Vision: "none", Decision: "none"})
		e.finish(ctx, emit, traceID, req, plan, start)
		return plan, nil
	}

	uiSource := strings.TrimSpace(req.Meta.UISource)
	if uiSource == "" {
		uiSource = string(uidetect.Detect(req.Images[0].Data))
	}
	pp := prompt.For(e.profile(req.Meta.PromptProfile))

	e.emit(emit, "progress", progress{Pct: 20, Message: "extracting chart features"})
	ext := e.extract(ctx, traceID, req, keys, market, uiSource, pp)
	e.emit(emit, "extraction", extractionEvent{
		Provider:  ext.Provider,
		UISource:  uiSource,
		SR:        ext.SR,
		Orderbook: ext.Orderbook,
	})

	e.emit(emit, "progress", progress{Pct: 60, Message: "building decision"})
	plan, decisionProvider := e.decide(ctx, traceID, req, keys, market, pp, ext)
	if plan == nil {
		logger.Warnf("[%s] all decision providers failed, returning stub", traceID)
		plan = stubPlan(len(req.Images), req.Meta, analysis.ProviderInfo{Vision: ext.Provider, Decision: "none"})
		e.finish(ctx, emit, traceID, req, plan, start)
		return plan, nil
	}

	ob, adjusted := analysis.EnforceOrderbookTicks(plan.Orderbook, market)
	plan.Orderbook = ob
	if adjusted > 0 {
		plan.Notes = append(plan.Notes, fmt.Sprintf("orderbook prices corrected to the tick grid: %d rows", adjusted))
	}
	if analysis.AnalyzeOrderbookGaps(plan.Orderbook, market).Irregular {
		plan.Notes = append(plan.Notes, "orderbook price spacing is irregular; board data may be stale or partial")
	}
	plan = analysis.CheckPlanConsistency(plan, market)

	score := analysis.ConsistencyScore(plan)
	plan.Confidence = analysis.BlendConfidence(plan.Confidence, score)

	e.fillExtracted(plan, req.Meta, market, uiSource)
	e.fillScenarios(plan)
	plan.Provider = decisionProvider
	plan.Providers = &analysis.ProviderInfo{Vision: ext.Provider, Decision: decisionProvider}
	if plan.Providers.Vision == "" {
		plan.Providers.Vision = "none"
	}

	e.finish(ctx, emit, traceID, req, plan, start)
	return plan, nil
}

// extract runs the vision call over each candidate provider until one
// yields a decodable object, then normalizes SR and orderbook data.
func (e *Engine) extract(ctx context.Context, traceID string, req Request, keys provider.Keys, market analysis.Market, uiSource string, pp prompt.Set) extraction {
	ext := extraction{
		Raw:       map[string]any{},
		Extracted: map[string]any{},
		Orderbook: analysis.Orderbook{Levels: []analysis.OrderbookLevel{}, Pressure: analysis.PressureNeutral},
	}

	images := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, dataURL(img))
	}
	system := pp.Vision
	if hint := prompt.UIHint(uiSource); hint != "" {
		system += "\nUI hint: " + hint
	}
	user := fmt.Sprintf("Extract normalized JSON from the screenshots. Known metadata: market=%s ticker=%s timeframe=%s",
		market, orUnknown(req.Meta.Ticker), orUnknown(req.Meta.Timeframe))

	for _, label := range e.providerOrder(req.Meta.Provider, keys) {
		client := e.providers.VisionClient(label, keys)
		if client == nil {
			continue
		}
		content, err := client.ChatJSON(ctx, provider.ChatRequest{
			Purpose:     "extraction",
			System:      system,
			User:        user,
			Images:      images,
			Temperature: pp.VisionTemp,
		})
		if err != nil {
			logger.Warnf("[%s] extraction via %s failed: %v", traceID, label, err)
			if ctx.Err() != nil {
				return ext
			}
			continue
		}
		obj, ok := jsonutil.ExtractObject(content)
		if !ok {
			logger.Warnf("[%s] extraction via %s returned no JSON object", traceID, label)
			continue
		}
		raw := analysis.DecodeObject(obj)
		if len(raw) == 0 {
			logger.Warnf("[%s] extraction via %s returned undecodable JSON", traceID, label)
			continue
		}
		ext.Raw = raw
		ext.Provider = label
		break
	}
	if ext.Provider == "" {
		return ext
	}

	// SR arrives under levels.sr per the extraction contract, but some
	// models flatten it to the top level.
	if lv, ok := ext.Raw["levels"].(map[string]any); ok {
		if sr, ok := lv["sr"].(map[string]any); ok {
			ext.SR = analysis.SanitizeSR(sr, market)
		}
	} else if sr, ok := ext.Raw["sr"].(map[string]any); ok {
		ext.SR = analysis.SanitizeSR(sr, market)
	}
	if inner, ok := ext.Raw["extracted"].(map[string]any); ok {
		ext.Extracted = inner
	}
	if obRaw, ok := ext.Raw["orderbook"].(map[string]any); ok {
		ext.Orderbook = analysis.NormalizeOrderbook(obRaw, market)
	}
	return ext
}

// decide summarizes the extraction into a plan, failing over between
// providers whenever the output is empty or not meaningful.
func (e *Engine) decide(ctx context.Context, traceID string, req Request, keys provider.Keys, market analysis.Market, pp prompt.Set, ext extraction) (*analysis.Plan, string) {
	input := map[string]any{
		"meta": map[string]any{
			"market":    string(market),
			"ticker":    req.Meta.Ticker,
			"timeframe": req.Meta.Timeframe,
			"horizon":   req.Meta.Horizon,
			"capital":   req.Meta.Capital,
			"riskPct":   req.Meta.RiskPct,
		},
		"extracted": ext.Extracted,
		"sr":        ext.SR,
		"orderbook": ext.Orderbook,
	}
	payload, err := json.Marshal(input)
	if err != nil {
		logger.Errorf("[%s] decision input marshal failed: %v", traceID, err)
		return nil, ""
	}

	for _, label := range e.providerOrder(req.Meta.Provider, keys) {
		client := e.providers.DecisionClient(label, keys, req.Meta.Model)
		if client == nil {
			continue
		}
		content, err := client.ChatJSON(ctx, provider.ChatRequest{
			Purpose:     "decision",
			System:      pp.Decision,
			User:        string(payload),
			Temperature: pp.DecisionTemp,
		})
		if err != nil {
			logger.Warnf("[%s] decision via %s failed: %v", traceID, label, err)
			if ctx.Err() != nil {
				return nil, ""
			}
			continue
		}
		obj, ok := jsonutil.ExtractObject(content)
		if !ok {
			obj = content
		}
		if !analysis.Meaningful(obj) {
			logger.Warnf("[%s] decision via %s not meaningful, trying next provider", traceID, label)
			continue
		}
		if err := analysis.CheckPlanShape(obj); err != nil {
			logger.Warnf("[%s] decision via %s failed the schema check, trying next provider: %v", traceID, label, err)
			continue
		}
		raw := analysis.DecodeObject(obj)
		if len(raw) == 0 {
			continue
		}
		return analysis.ValidateDecision(raw, market), label
	}
	return nil, ""
}

// providerOrder ranks candidate providers. Groq leads unless the
// request prefers another provider, and is skipped entirely when its
// key does not look like a Groq key.
func (e *Engine) providerOrder(prefer string, keys provider.Keys) []string {
	if strings.TrimSpace(prefer) == "" {
		prefer = e.preferProvider
	}
	var order []string
	switch strings.ToLower(strings.TrimSpace(prefer)) {
	case provider.OpenAI:
		order = []string{provider.OpenAI, provider.OpenRouter, provider.Groq}
	case provider.OpenRouter:
		order = []string{provider.OpenRouter, provider.OpenAI, provider.Groq}
	default:
		order = []string{provider.Groq, provider.OpenAI, provider.OpenRouter}
	}
	out := order[:0]
	for _, label := range order {
		if label == provider.Groq && !provider.GroqKeyLooksValid(keys.Groq) {
			continue
		}
		out = append(out, label)
	}
	return out
}

func (e *Engine) resolveMarket(requested string) analysis.Market {
	if requested == "" {
		return e.defaultMarket
	}
	m, ok := analysis.ParseMarket(requested)
	if !ok {
		return e.defaultMarket
	}
	return m
}

func (e *Engine) profile(requested string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return e.promptProfile
}

// fillExtracted backfills instrument metadata the model left blank
// from the request metadata and UI detection.
func (e *Engine) fillExtracted(plan *analysis.Plan, meta Meta, market analysis.Market, uiSource string) {
	if plan.Extracted.Ticker == "" {
		plan.Extracted.Ticker = meta.Ticker
	}
	if plan.Extracted.Timeframe == "" {
		plan.Extracted.Timeframe = meta.Timeframe
	}
	if _, ok := analysis.ParseMarket(plan.Extracted.Market); !ok {
		plan.Extracted.Market = string(market)
	}
	if plan.Extracted.UISource == "" && uiSource != string(uidetect.SourceUnknown) {
		plan.Extracted.UISource = uiSource
	}
}

// fillScenarios synthesizes a base scenario from the plan levels when
// the model omitted scenarios for an actionable decision.
func (e *Engine) fillScenarios(plan *analysis.Plan) {
	if plan.Scenarios != nil || plan.Decision == analysis.DecisionHold {
		return
	}
	if plan.Levels.Entry == nil && plan.Levels.SL == nil && len(plan.Levels.TP) == 0 {
		return
	}
	base := &analysis.Scenario{
		Conditions: "baseline scenario from the current read of the chart",
		Entry:      plan.Levels.Entry,
		SL:         plan.Levels.SL,
	}
	if n := len(plan.Levels.TP); n > 0 {
		if n > 2 {
			n = 2
		}
		base.TP = append([]float64(nil), plan.Levels.TP[:n]...)
	}
	if n := len(plan.Rationale); n > 0 {
		if n > 3 {
			n = 3
		}
		base.Rationale = append([]string(nil), plan.Rationale[:n]...)
	}
	plan.Scenarios = &analysis.Scenarios{Base: base}
}

// finish emits the terminal events and persists the record.
func (e *Engine) finish(ctx context.Context, emit Emitter, traceID string, req Request, plan *analysis.Plan, start time.Time) {
	e.emit(emit, "decision", plan)
	e.emit(emit, "progress", progress{Pct: 100, Message: "done"})
	logger.Infof("[%s] analyze done decision=%s confidence=%.2f elapsed=%s",
		traceID, plan.Decision, plan.Confidence, time.Since(start).Round(time.Millisecond))
	e.persist(ctx, traceID, req, plan)
}

// persist is best-effort; a history failure never fails the request.
func (e *Engine) persist(ctx context.Context, traceID string, req Request, plan *analysis.Plan) {
	if e.store == nil {
		return
	}
	metaJSON, err := json.Marshal(req.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}
	resultJSON, err := json.Marshal(plan)
	if err != nil {
		logger.Warnf("[%s] history marshal failed: %v", traceID, err)
		return
	}
	rec := &history.Record{
		TraceID:    traceID,
		Ticker:     plan.Extracted.Ticker,
		Market:     plan.Extracted.Market,
		Decision:   plan.Decision,
		Confidence: plan.Confidence,
		ImageCount: len(req.Images),
		Meta:       datatypes.JSON(metaJSON),
		Result:     datatypes.JSON(resultJSON),
	}
	if err := e.store.Save(ctx, rec); err != nil {
		logger.Warnf("[%s] history save failed: %v", traceID, err)
	}
}

func (e *Engine) emit(emit Emitter, event string, data any) {
	if emit != nil {
		emit(event, data)
	}
}

type progress struct {
	Pct     int    `json:"pct"`
	Message string `json:"message"`
}

type extractionEvent struct {
	Provider  string                     `json:"provider"`
	UISource  string                     `json:"uiSource,omitempty"`
	SR        analysis.SupportResistance `json:"sr"`
	Orderbook analysis.Orderbook         `json:"orderbook"`
}

func dataURL(img Image) string {
	mime := img.MIME
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
