package models

import (
	"context"
	"fmt"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/dohr-michael/netwatch/internal/config"
)

// NewGemini creates a Gemini ChatModel backed by the Gemini API.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, apiKey string) (model.BaseChatModel, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cc.HTTPClient = newHTTPClient(cfg.Driver, cfg.Timeout.Duration())

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	modelConfig := &einogemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: temperature(cfg),
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}

	return einogemini.NewChatModel(ctx, modelConfig)
}
