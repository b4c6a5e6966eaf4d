// Package engine sequences one screenshot analysis: vision extraction,
// normalization, decision summarization with provider failover, and the
// validation/consistency pipeline that turns raw model output into a
// usable plan.
package engine

import (
	"context"

	"chartsight/internal/analysis"
	"chartsight/internal/provider"
)

// Meta is the client-supplied request metadata. Everything is
// optional; the engine fills sensible defaults.
type Meta struct {
	Market        string  `json:"market,omitempty"`
	Ticker        string  `json:"ticker,omitempty"`
	Timeframe     string  `json:"timeframe,omitempty"`
	Horizon       string  `json:"horizon,omitempty"`
	Provider      string  `json:"provider,omitempty"` // preferred provider label
	Model         string  `json:"model,omitempty"`    // decision model override, "auto" = default
	PromptProfile string  `json:"promptProfile,omitempty"`
	UISource      string  `json:"uiSource,omitempty"`
	Capital       float64 `json:"capital,omitempty"`
	RiskPct       float64 `json:"riskPct,omitempty"`
}

// Image is one uploaded screenshot.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// Request is one analysis invocation.
type Request struct {
	Meta   Meta
	Images []Image
	Keys   provider.Keys
}

// Emitter receives phase events for the streaming transport. A nil
// emitter is fine for the plain request/response path.
type Emitter func(event string, data any)

// ChatCaller is the slice of the provider client the engine needs;
// tests substitute canned responders.
type ChatCaller interface {
	Name() string
	ChatJSON(ctx context.Context, req provider.ChatRequest) (string, error)
}

// ClientFactory hands out per-request provider clients. Nil means the
// provider has no usable key.
type ClientFactory interface {
	MergeKeys(k provider.Keys) provider.Keys
	VisionClient(label string, keys provider.Keys) ChatCaller
	DecisionClient(label string, keys provider.Keys, model string) ChatCaller
}

// factoryAdapter bridges the concrete provider.Factory, keeping the
// nil-pointer-in-interface trap out of the call sites.
type factoryAdapter struct {
	f *provider.Factory
}

func (a factoryAdapter) MergeKeys(k provider.Keys) provider.Keys { return a.f.MergeKeys(k) }

func (a factoryAdapter) VisionClient(label string, keys provider.Keys) ChatCaller {
	if c := a.f.Vision(label, keys); c != nil {
		return c
	}
	return nil
}

func (a factoryAdapter) DecisionClient(label string, keys provider.Keys, model string) ChatCaller {
	if c := a.f.Decision(label, keys, model); c != nil {
		return c
	}
	return nil
}

// extraction is the enriched vision result handed to the decision call.
type extraction struct {
	Raw       map[string]any
	Extracted map[string]any
	SR        analysis.SupportResistance
	Orderbook analysis.Orderbook
	Provider  string
}
