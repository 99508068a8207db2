// Package callbacks provides Eino callback handlers that log model calls.
package callbacks

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	ub "github.com/cloudwego/eino/utils/callbacks"
)

// NewLoggingHandler creates a callback handler that logs chat model calls
// at debug level. Message text is never logged.
func NewLoggingHandler(logger *slog.Logger) callbacks.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	modelHandler := &ub.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			logger.DebugContext(ctx, "model request",
				"model", runName(info),
				"messages", len(input.Messages),
			)
			return ctx
		},

		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			attrs := []any{"model", runName(info)}
			if output.Message != nil {
				attrs = append(attrs, "chars", len(output.Message.Content))
				if meta := output.Message.ResponseMeta; meta != nil && meta.Usage != nil {
					attrs = append(attrs,
						"tokens_in", meta.Usage.PromptTokens,
						"tokens_out", meta.Usage.CompletionTokens,
					)
				}
			}
			logger.DebugContext(ctx, "model response", attrs...)
			return ctx
		},

		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			logger.DebugContext(ctx, "model error",
				"model", runName(info),
				"error", truncatePayload(err.Error(), 500),
			)
			return ctx
		},
	}

	return ub.NewHandlerHelper().
		ChatModel(modelHandler).
		Handler()
}

// Install registers h for every component call in the process. It must run
// before any model is used.
func Install(h callbacks.Handler) {
	callbacks.AppendGlobalHandlers(h)
}

func runName(info *callbacks.RunInfo) string {
	if info == nil {
		return ""
	}
	if info.Name != "" {
		return info.Name
	}
	return info.Type
}

func truncatePayload(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
