package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// standardizes it to JSON, unmarshals it into Config and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSONC bytes into a Config with defaults applied.
func Parse(data []byte) (*Config, error) {
	// Templates live inside string literals, so expand before standardizing.
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse jsonc: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18430
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogLevel == "" {
		cfg.Events.LogLevel = "info"
	}

	// A bare install talks to Gemini with the key taken from the environment
	// at request time.
	if len(cfg.Models.Providers) == 0 {
		cfg.Models.Providers = map[string]ProviderConfig{
			"gemini": {Driver: "gemini", Model: DefaultGeminiModel},
		}
	}
	if cfg.Models.Default == "" {
		if _, ok := cfg.Models.Providers["gemini"]; ok {
			cfg.Models.Default = "gemini"
		} else {
			for name := range cfg.Models.Providers {
				if cfg.Models.Default == "" || name < cfg.Models.Default {
					cfg.Models.Default = name
				}
			}
		}
	}

	if cfg.Assistant.ErrorMessage == "" {
		cfg.Assistant.ErrorMessage = DefaultErrorMessage
	}
	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = Duration(2 * time.Second)
	}
	if cfg.Metrics.History == 0 {
		cfg.Metrics.History = 50
	}
	if cfg.Prediction.Schedule == "" {
		cfg.Prediction.Schedule = "@every 60s"
	}
	if cfg.Storage.EventLogDir == "" {
		cfg.Storage.EventLogDir = filepath.Join(HomePath(), "logs")
	}
	if cfg.Storage.UsageDB == "" {
		cfg.Storage.UsageDB = filepath.Join(HomePath(), "usage.db")
	}
}

const (
	// DefaultGeminiModel is used when a gemini provider names no model.
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultErrorMessage replaces the assistant turn of a failed submission.
	DefaultErrorMessage = "⚠️ Error processing request. Please try again."
)
