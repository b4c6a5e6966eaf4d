package config

// Config is the full application configuration, merged from YAML.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	History   HistoryConfig   `mapstructure:"history"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	LLMDump  bool   `mapstructure:"llm_dump"`
	LLMLog   string `mapstructure:"llm_log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AnalysisConfig struct {
	// DefaultMarket applies when a request carries no market hint.
	DefaultMarket string `mapstructure:"default_market"`
	PromptProfile string `mapstructure:"prompt_profile"`
}

// ProvidersConfig holds credentials for the three upstream LLM
// gateways. Keys can also arrive per-request via headers, which take
// precedence over these.
type ProvidersConfig struct {
	Prefer     string         `mapstructure:"prefer"`
	Groq       ProviderConfig `mapstructure:"groq"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
}

type ProviderConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	VisionModel   string `mapstructure:"vision_model"`
	DecisionModel string `mapstructure:"decision_model"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	MaxRetries    int    `mapstructure:"max_retries"`
}
