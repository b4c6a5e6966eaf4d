package provider

import (
	"regexp"
	"time"

	"chartsight/internal/config"
)

// Provider labels, also used for request-level preference and response
// annotations.
const (
	Groq       = "groq"
	OpenAI     = "openai"
	OpenRouter = "openrouter"
)

const (
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultGroqVisionModel   = "llama-3.2-11b-vision-preview"
	defaultGroqDecisionModel = "llama-3.1-70b-versatile"
	defaultOpenAIModel       = "gpt-4o-mini"
)

// Groq issues keys with a fixed prefix; anything else gets skipped
// before wasting a vision call on a guaranteed 401.
var groqKeyPattern = regexp.MustCompile(`^gsk_[A-Za-z0-9_\-]{10,}`)

func GroqKeyLooksValid(key string) bool {
	return groqKeyPattern.MatchString(key)
}

// Keys are the per-request credentials; a populated field overrides
// the configured one.
type Keys struct {
	Groq       string
	OpenAI     string
	OpenRouter string
}

func (k Keys) Empty() bool {
	return k.Groq == "" && k.OpenAI == "" && k.OpenRouter == ""
}

// Factory builds clients for one request from static config plus
// request keys.
type Factory struct {
	cfg config.ProvidersConfig
}

func NewFactory(cfg config.ProvidersConfig) *Factory {
	return &Factory{cfg: cfg}
}

// MergeKeys applies config fallbacks to request-supplied keys.
func (f *Factory) MergeKeys(k Keys) Keys {
	if k.Groq == "" {
		k.Groq = f.cfg.Groq.APIKey
	}
	if k.OpenAI == "" {
		k.OpenAI = f.cfg.OpenAI.APIKey
	}
	if k.OpenRouter == "" {
		k.OpenRouter = f.cfg.OpenRouter.APIKey
	}
	return k
}

// Vision returns the extraction client for a provider label, or nil
// when no key is available.
func (f *Factory) Vision(label string, keys Keys) *Client {
	return f.build(label, keys, true, "")
}

// Decision returns the summarization client. modelOverride comes from
// request metadata ("auto" and empty mean the configured default).
func (f *Factory) Decision(label string, keys Keys, modelOverride string) *Client {
	if modelOverride == "auto" {
		modelOverride = ""
	}
	return f.build(label, keys, false, modelOverride)
}

func (f *Factory) build(label string, keys Keys, vision bool, modelOverride string) *Client {
	var (
		pc  config.ProviderConfig
		key string
	)
	switch label {
	case Groq:
		pc, key = f.cfg.Groq, keys.Groq
	case OpenAI:
		pc, key = f.cfg.OpenAI, keys.OpenAI
	case OpenRouter:
		pc, key = f.cfg.OpenRouter, keys.OpenRouter
	default:
		return nil
	}
	if key == "" {
		return nil
	}

	c := &Client{
		Label:      label,
		APIKey:     key,
		BaseURL:    pc.BaseURL,
		MaxRetries: pc.MaxRetries,
	}
	if pc.TimeoutSec > 0 {
		c.Timeout = time.Duration(pc.TimeoutSec) * time.Second
	}
	if c.BaseURL == "" {
		switch label {
		case Groq:
			c.BaseURL = defaultGroqBaseURL
		case OpenAI:
			c.BaseURL = defaultOpenAIBaseURL
		case OpenRouter:
			c.BaseURL = defaultOpenRouterBaseURL
		}
	}

	if label == OpenRouter {
		// OpenRouter asks callers to identify themselves.
		c.ExtraHeaders = map[string]string{"X-Title": "chartsight"}
	}

	c.Model = modelOverride
	if c.Model == "" {
		if vision {
			c.Model = pc.VisionModel
		} else {
			c.Model = pc.DecisionModel
		}
	}
	if c.Model == "" {
		switch {
		case label == Groq && vision:
			c.Model = defaultGroqVisionModel
		case label == Groq:
			c.Model = defaultGroqDecisionModel
		default:
			c.Model = defaultOpenAIModel
		}
	}
	return c
}
