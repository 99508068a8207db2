package models

import (
	"context"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/netwatch/internal/config"
)

const defaultOpenAITimeout = 60 * time.Second

// NewOpenAI creates a ChatModel for OpenAI or any server speaking its API
// (vLLM, LM Studio, OpenRouter) when BaseURL is set.
func NewOpenAI(ctx context.Context, cfg config.ProviderConfig, apiKey string) (model.BaseChatModel, error) {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}

	mc := &einoopenai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Timeout:     timeout,
		HTTPClient:  newHTTPClient(cfg.Driver, timeout),
		Temperature: temperature(cfg),
	}
	if n := cfg.MaxTokens; n > 0 {
		mc.MaxCompletionTokens = &n
	}
	return einoopenai.NewChatModel(ctx, mc)
}
