package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/netwatch/internal/config"
)

// CreateModel builds a chat model from a provider config. Credentials are
// resolved here, so a missing key fails the first request, not startup.
func CreateModel(ctx context.Context, cfg config.ProviderConfig, dec Decrypter) (model.BaseChatModel, error) {
	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case "gemini", "anthropic", "openai":
	case "ollama":
		return NewOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	apiKey, err := ResolveAuth(cfg, dec)
	if err != nil {
		return nil, err
	}

	switch driver {
	case "gemini":
		return NewGemini(ctx, cfg, apiKey)
	case "anthropic":
		return NewAnthropic(ctx, cfg, apiKey)
	default:
		return NewOpenAI(ctx, cfg, apiKey)
	}
}

func temperature(cfg config.ProviderConfig) *float32 {
	if temp, ok := cfg.Options["temperature"].(float64); ok {
		t := float32(temp)
		return &t
	}
	return nil
}
