package models

import (
	"context"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/netwatch/internal/config"
)

const defaultAnthropicMaxTokens = 1024

// NewAnthropic creates a Claude ChatModel.
func NewAnthropic(ctx context.Context, cfg config.ProviderConfig, apiKey string) (model.BaseChatModel, error) {
	modelConfig := &einoclaude.Config{
		APIKey:      apiKey,
		Model:       cfg.Model,
		MaxTokens:   defaultAnthropicMaxTokens,
		Temperature: temperature(cfg),
	}
	if cfg.MaxTokens > 0 {
		modelConfig.MaxTokens = cfg.MaxTokens
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		modelConfig.BaseURL = &baseURL
	}

	return einoclaude.NewChatModel(ctx, modelConfig)
}
