package models

import (
	"context"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/netwatch/internal/config"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaTimeout = 300 * time.Second
)

// NewOllama creates an Ollama ChatModel. Local models need no credential.
func NewOllama(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}

	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL:    baseURL,
		Model:      cfg.Model,
		Timeout:    timeout,
		HTTPClient: newHTTPClient(cfg.Driver, timeout),
		Options:    ollamaOptions(cfg),
	})
}

// ollamaOptions maps max_tokens and the provider options onto Ollama's
// sampling options. Numbers arrive from JSON as float64.
func ollamaOptions(cfg config.ProviderConfig) *einoollama.Options {
	opts := &einoollama.Options{NumPredict: cfg.MaxTokens}
	if t := temperature(cfg); t != nil {
		opts.Temperature = *t
	}

	num := func(key string) (float64, bool) {
		v, ok := cfg.Options[key].(float64)
		return v, ok
	}
	if v, ok := num("num_ctx"); ok {
		opts.NumCtx = int(v)
	}
	if v, ok := num("num_predict"); ok {
		opts.NumPredict = int(v)
	}
	if v, ok := num("top_p"); ok {
		opts.TopP = float32(v)
	}
	if v, ok := num("top_k"); ok {
		opts.TopK = int(v)
	}
	return opts
}
