package config

import "time"

// Config is the root configuration for netwatch.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Models     ModelsConfig     `json:"models"`
	Events     EventsConfig     `json:"events"`
	Assistant  AssistantConfig  `json:"assistant"`
	Metrics    MetricsConfig    `json:"metrics"`
	Prediction PredictionConfig `json:"prediction"`
	Storage    StorageConfig    `json:"storage"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "gemini", "anthropic", "openai", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key, ${VAR} or ${{ .Env.VAR }} template
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level,omitempty"`
}

// AssistantConfig configures the chat transcript controller.
type AssistantConfig struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Model        string `json:"model,omitempty"` // provider name, empty = models.default
}

// MetricsConfig configures the simulated network metrics feed.
type MetricsConfig struct {
	Interval Duration `json:"interval,omitempty"`
	History  int      `json:"history,omitempty"`
}

// PredictionConfig configures the periodic prediction job.
type PredictionConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	Schedule     string `json:"schedule,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Model        string `json:"model,omitempty"`
}

// IsEnabled reports whether predictions run; unset means enabled.
func (p PredictionConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// StorageConfig configures diagnostic storage.
type StorageConfig struct {
	EventLogDir string `json:"event_log_dir,omitempty"`
	UsageDB     string `json:"usage_db,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
