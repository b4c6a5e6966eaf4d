package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"chartsight/internal/analysis"
)

// Load reads and validates the YAML config at path. Missing optional
// sections fall back to defaults; contradictory settings fail fast.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8787"
	}
	if c.History.Path == "" {
		c.History.Path = "data/history.db"
	}
	if c.Analysis.DefaultMarket == "" {
		c.Analysis.DefaultMarket = string(analysis.MarketJP)
	}
	if c.Analysis.PromptProfile == "" {
		c.Analysis.PromptProfile = "default"
	}
}

func validate(c *Config) error {
	if _, ok := analysis.ParseMarket(c.Analysis.DefaultMarket); !ok {
		return fmt.Errorf("unknown default_market %q (want JP, US or CRYPTO)", c.Analysis.DefaultMarket)
	}
	switch strings.ToLower(strings.TrimSpace(c.Providers.Prefer)) {
	case "", "groq", "openai", "openrouter":
	default:
		return fmt.Errorf("unknown providers.prefer %q", c.Providers.Prefer)
	}
	switch strings.ToLower(strings.TrimSpace(c.Analysis.PromptProfile)) {
	case "default", "strict", "verbose":
	default:
		return fmt.Errorf("unknown prompt_profile %q", c.Analysis.PromptProfile)
	}
	if c.App.LLMDump && strings.TrimSpace(c.App.LLMLog) == "" {
		return fmt.Errorf("llm_dump requires llm_log to be set")
	}
	return nil
}
