package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartsight/internal/analysis"
	"chartsight/internal/provider"
	"chartsight/internal/store/history"
)

type fakeClient struct {
	label string
	reply string
	err   error
	calls int
	last  provider.ChatRequest
}

func (c *fakeClient) Name() string { return c.label }

func (c *fakeClient) ChatJSON(_ context.Context, req provider.ChatRequest) (string, error) {
	c.calls++
	c.last = req
	return c.reply, c.err
}

type fakeFactory struct {
	vision   map[string]*fakeClient
	decision map[string]*fakeClient
}

func (f fakeFactory) MergeKeys(k provider.Keys) provider.Keys { return k }

func (f fakeFactory) VisionClient(label string, keys provider.Keys) ChatCaller {
	if keyFor(label, keys) == "" {
		return nil
	}
	if c, ok := f.vision[label]; ok {
		return c
	}
	return nil
}

func (f fakeFactory) DecisionClient(label string, keys provider.Keys, _ string) ChatCaller {
	if keyFor(label, keys) == "" {
		return nil
	}
	if c, ok := f.decision[label]; ok {
		return c
	}
	return nil
}

func keyFor(label string, keys provider.Keys) string {
	switch label {
	case provider.Groq:
		return keys.Groq
	case provider.OpenAI:
		return keys.OpenAI
	case provider.OpenRouter:
		return keys.OpenRouter
	}
	return ""
}

const visionReply = `{
  "extracted": {"ticker": "7203", "market": "JP", "timeframe": "15m"},
  "levels": {"sr": {"support": [995, 1000], "resistance": [1010]}},
  "orderbook": {"levels": [{"price": 1003.2, "bid": 100, "ask": 50}]}
}`

const decisionReply = `{
  "decision": "buy",
  "horizon": "intraday",
  "rationale": ["uptrend intact", "bid side dominates the board"],
  "levels": {"entry": 1003.4, "sl": 995, "tp": [1010, 1020], "sr": {"support": [995], "resistance": [1010]}},
  "orderbook": {"levels": [{"price": 1003, "bid": 100, "ask": 50}], "spread": 1, "imbalance": 0.5, "pressure": "bid"},
  "extracted": {"ticker": "7203", "market": "JP", "timeframe": "15m"},
  "confidence": 0.8,
  "notes": []
}`

func groqKeys() provider.Keys {
	return provider.Keys{Groq: "gsk_0123456789abcdef"}
}

func pngImage() Image {
	return Image{Name: "chart.png", MIME: "image/png", Data: []byte("not-a-real-png")}
}

func TestAnalyzeHappyPath(t *testing.T) {
	vision := &fakeClient{label: provider.Groq, reply: visionReply}
	decision := &fakeClient{label: provider.Groq, reply: decisionReply}
	eng := New(Options{
		Providers: fakeFactory{
			vision:   map[string]*fakeClient{provider.Groq: vision},
			decision: map[string]*fakeClient{provider.Groq: decision},
		},
		DefaultMarket: analysis.MarketJP,
	})

	var events []string
	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP", Ticker: "7203", Timeframe: "15m", UISource: "TradingView"},
		Images: []Image{pngImage()},
		Keys:   groqKeys(),
	}, func(event string, _ any) { events = append(events, event) })

	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, analysis.DecisionBuy, plan.Decision)
	require.NotNil(t, plan.Levels.Entry)
	assert.Equal(t, 1003.0, *plan.Levels.Entry)
	assert.Contains(t, plan.Notes, analysis.NoteEntrySnapped)
	assert.InDelta(t, 0.82, plan.Confidence, 1e-9)
	assert.Equal(t, provider.Groq, plan.Provider)
	require.NotNil(t, plan.Providers)
	assert.Equal(t, provider.Groq, plan.Providers.Vision)
	assert.Equal(t, provider.Groq, plan.Providers.Decision)

	// Missing scenarios get a synthesized baseline for actionable plans.
	require.NotNil(t, plan.Scenarios)
	require.NotNil(t, plan.Scenarios.Base)
	assert.Equal(t, 1003.0, *plan.Scenarios.Base.Entry)
	assert.Equal(t, []float64{1010, 1020}, plan.Scenarios.Base.TP)

	assert.Equal(t, 1, vision.calls)
	assert.Len(t, vision.last.Images, 1)
	assert.Contains(t, vision.last.System, "UI hint")
	assert.Equal(t, "extraction", vision.last.Purpose)
	assert.Equal(t, 1, decision.calls)
	assert.Empty(t, decision.last.Images)

	assert.Contains(t, events, "extraction")
	assert.Contains(t, events, "decision")
	assert.Equal(t, "progress", events[len(events)-1])
}

func TestAnalyzeStubWhenNoKeys(t *testing.T) {
	eng := New(Options{Providers: fakeFactory{}, DefaultMarket: analysis.MarketJP})

	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "US", Ticker: "AAPL"},
		Images: []Image{pngImage()},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, analysis.DecisionHold, plan.Decision)
	assert.Equal(t, 0.3, plan.Confidence)
	assert.Equal(t, "AAPL", plan.Extracted.Ticker)
	assert.Equal(t, "US", plan.Extracted.Market)
	require.NotNil(t, plan.Providers)
	assert.Equal(t, "none", plan.Providers.Decision)

	// The stub serializes with empty arrays, never null collections.
	assert.NotNil(t, plan.Levels.SR.Support)
	assert.NotNil(t, plan.Levels.SR.Resistance)
	assert.NotNil(t, plan.Orderbook.Levels)
	encoded, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"support":[]`)
	assert.Contains(t, string(encoded), `"resistance":[]`)
}

func TestAnalyzeStubWhenNoImages(t *testing.T) {
	eng := New(Options{Providers: fakeFactory{}, DefaultMarket: analysis.MarketJP})

	plan, err := eng.Analyze(context.Background(), Request{Keys: groqKeys()}, nil)

	require.NoError(t, err)
	assert.Equal(t, analysis.DecisionHold, plan.Decision)
	assert.Contains(t, plan.Rationale[1], "received images: 0")
}

func TestAnalyzeDecisionFailover(t *testing.T) {
	groqDecision := &fakeClient{label: provider.Groq, reply: `{"status": "unavailable"}`}
	openaiDecision := &fakeClient{label: provider.OpenAI, reply: decisionReply}
	eng := New(Options{
		Providers: fakeFactory{
			vision: map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: visionReply}},
			decision: map[string]*fakeClient{
				provider.Groq:   groqDecision,
				provider.OpenAI: openaiDecision,
			},
		},
		DefaultMarket: analysis.MarketJP,
	})

	keys := groqKeys()
	keys.OpenAI = "sk-test"
	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP"},
		Images: []Image{pngImage()},
		Keys:   keys,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, groqDecision.calls)
	assert.Equal(t, 1, openaiDecision.calls)
	assert.Equal(t, provider.OpenAI, plan.Provider)
	require.NotNil(t, plan.Providers)
	assert.Equal(t, provider.Groq, plan.Providers.Vision)
}

func TestAnalyzeSchemaFailureTriggersFailover(t *testing.T) {
	// Meaningful (directional call) but the confidence type violates the
	// response schema, so the provider must not be accepted.
	groqDecision := &fakeClient{label: provider.Groq, reply: `{"decision": "buy", "confidence": "high"}`}
	openaiDecision := &fakeClient{label: provider.OpenAI, reply: decisionReply}
	eng := New(Options{
		Providers: fakeFactory{
			vision: map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: visionReply}},
			decision: map[string]*fakeClient{
				provider.Groq:   groqDecision,
				provider.OpenAI: openaiDecision,
			},
		},
		DefaultMarket: analysis.MarketJP,
	})

	keys := groqKeys()
	keys.OpenAI = "sk-test"
	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP"},
		Images: []Image{pngImage()},
		Keys:   keys,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, groqDecision.calls)
	assert.Equal(t, 1, openaiDecision.calls)
	assert.Equal(t, provider.OpenAI, plan.Provider)
	assert.Equal(t, analysis.DecisionBuy, plan.Decision)
}

func TestAnalyzeStubWhenSchemaFailsEverywhere(t *testing.T) {
	eng := New(Options{
		Providers: fakeFactory{
			vision:   map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: visionReply}},
			decision: map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: `{"decision": "buy", "confidence": "high"}`}},
		},
		DefaultMarket: analysis.MarketJP,
	})

	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP"},
		Images: []Image{pngImage()},
		Keys:   groqKeys(),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, analysis.DecisionHold, plan.Decision)
	require.NotNil(t, plan.Providers)
	assert.Equal(t, "none", plan.Providers.Decision)
}

func TestAnalyzeStubWhenAllDecisionsFail(t *testing.T) {
	eng := New(Options{
		Providers: fakeFactory{
			vision:   map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: visionReply}},
			decision: map[string]*fakeClient{provider.Groq: {label: provider.Groq, err: errors.New("boom")}},
		},
		DefaultMarket: analysis.MarketJP,
	})

	plan, err := eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP"},
		Images: []Image{pngImage()},
		Keys:   groqKeys(),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, analysis.DecisionHold, plan.Decision)
	require.NotNil(t, plan.Providers)
	assert.Equal(t, provider.Groq, plan.Providers.Vision)
	assert.Equal(t, "none", plan.Providers.Decision)
}

func TestProviderOrder(t *testing.T) {
	eng := New(Options{Providers: fakeFactory{}, DefaultMarket: analysis.MarketJP})

	keys := groqKeys()
	keys.OpenAI = "sk-test"
	assert.Equal(t, []string{provider.Groq, provider.OpenAI, provider.OpenRouter}, eng.providerOrder("", keys))
	assert.Equal(t, []string{provider.OpenAI, provider.OpenRouter, provider.Groq}, eng.providerOrder("openai", keys))
	assert.Equal(t, []string{provider.OpenRouter, provider.OpenAI, provider.Groq}, eng.providerOrder("openrouter", keys))

	// A key that does not look like a Groq key drops Groq entirely.
	assert.Equal(t, []string{provider.OpenAI, provider.OpenRouter},
		eng.providerOrder("", provider.Keys{Groq: "sk-wrong-issuer", OpenAI: "sk-test"}))
}

func TestAnalyzePersistsHistory(t *testing.T) {
	st, err := history.New(t.TempDir() + "/history.db")
	require.NoError(t, err)
	defer st.Close()

	eng := New(Options{
		Providers: fakeFactory{
			vision:   map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: visionReply}},
			decision: map[string]*fakeClient{provider.Groq: {label: provider.Groq, reply: decisionReply}},
		},
		Store:         st,
		DefaultMarket: analysis.MarketJP,
	})

	_, err = eng.Analyze(context.Background(), Request{
		Meta:   Meta{Market: "JP", Ticker: "7203"},
		Images: []Image{pngImage()},
		Keys:   groqKeys(),
	}, nil)
	require.NoError(t, err)

	records, err := st.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, analysis.DecisionBuy, records[0].Decision)
	assert.Equal(t, "7203", records[0].Ticker)
	assert.Equal(t, 1, records[0].ImageCount)
	assert.NotEmpty(t, records[0].TraceID)
}
