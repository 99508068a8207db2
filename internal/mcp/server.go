package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// DefaultAskTimeout bounds how long ask_network_assistant waits for a reply.
const DefaultAskTimeout = 2 * time.Minute

// Options configures the MCP server.
type Options struct {
	Version    string
	AskTimeout time.Duration
	// Filter restricts the exposed tools by name. Empty exposes all.
	Filter []string
}

// handlerFunc runs a tool with its raw JSON arguments and returns text.
type handlerFunc func(ctx context.Context, args json.RawMessage) (string, error)

type tool struct {
	spec toolSpec
	run  handlerFunc
}

// NewServer creates an MCP server exposing the assistant, the live metrics
// and the enhancement selection.
func NewServer(svc ws.Services, opts Options) *mcpsdk.Server {
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "netwatch",
		Version: opts.Version,
	}, nil)

	for _, t := range tools(svc, opts) {
		if len(opts.Filter) > 0 && !slices.Contains(opts.Filter, t.spec.Name) {
			continue
		}
		run, name := t.run, t.spec.Name
		server.AddTool(t.spec.toMCPTool(), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			out, err := run(ctx, req.Params.Arguments)
			if err != nil {
				slog.Debug("mcp tool error", "tool", name, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
			}, nil
		})
		slog.Debug("mcp tool registered", "tool", name)
	}
	return server
}

// ToolNames lists every tool the server can expose.
func ToolNames() []string {
	var names []string
	for _, t := range tools(ws.Services{}, Options{}) {
		names = append(names, t.spec.Name)
	}
	return names
}

func tools(svc ws.Services, opts Options) []tool {
	timeout := opts.AskTimeout
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	groupIDs := make([]string, 0, len(enhance.Groups))
	for _, g := range enhance.Groups {
		groupIDs = append(groupIDs, g.ID)
	}

	return []tool{
		{
			spec: toolSpec{
				Name:        "network_metrics",
				Description: "Current bandwidth, latency and packet loss with their health status.",
				Params: map[string]param{
					"include_history": {Type: "boolean", Description: "Include the recent sample history"},
				},
			},
			run: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					IncludeHistory bool `json:"include_history"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				return toJSON(metricsReport(svc.Metrics.Current(), in.IncludeHistory))
			},
		},
		{
			spec: toolSpec{
				Name:        "ask_network_assistant",
				Description: "Ask the network assistant a question and wait for its full answer.",
				Params: map[string]param{
					"question": {Type: "string", Description: "The question to ask", Required: true},
				},
			},
			run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Question string `json:"question"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				return ask(ctx, svc.Transcript, in.Question, timeout)
			},
		},
		{
			spec: toolSpec{
				Name:        "list_options",
				Description: "List the supported languages and enhancements with the current selection.",
			},
			run: func(context.Context, json.RawMessage) (string, error) {
				return toJSON(ws.OptionsOf(svc.Selector))
			},
		},
		{
			spec: toolSpec{
				Name:        "select_language",
				Description: "Choose the language the assistant answers in.",
				Params: map[string]param{
					"language": {Type: "string", Description: "Response language", Required: true, Enum: enhance.Languages},
				},
			},
			run: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Language string `json:"language"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				if err := svc.Selector.SelectLanguage(in.Language); err != nil {
					return "", err
				}
				return toJSON(svc.Selector.Current())
			},
		},
		{
			spec: toolSpec{
				Name:        "select_enhancement",
				Description: "Tag the next questions with an emotional enhancement.",
				Params: map[string]param{
					"group": {Type: "string", Description: "Enhancement group", Required: true, Enum: groupIDs},
					"value": {Type: "string", Description: "Value within the group", Required: true},
				},
			},
			run: func(_ context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Group string `json:"group"`
					Value string `json:"value"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				if err := svc.Selector.SelectEnhancement(in.Group, in.Value); err != nil {
					return "", err
				}
				return toJSON(svc.Selector.Current())
			},
		},
		{
			spec: toolSpec{
				Name:        "clear_selection",
				Description: "Drop the language and enhancement selection.",
			},
			run: func(context.Context, json.RawMessage) (string, error) {
				svc.Selector.Clear()
				return toJSON(svc.Selector.Current())
			},
		},
	}
}

// ask submits question and waits for the assistant turn to settle.
func ask(ctx context.Context, tr ws.Transcript, question string, timeout time.Duration) (string, error) {
	h, err := tr.Submit(question)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := h.Wait(ctx); err != nil && h.State() == transcript.StateStreaming {
		return "", fmt.Errorf("waiting for answer: %w", err)
	}

	text := ""
	for _, t := range tr.Snapshot().Turns {
		if t.ID == h.TurnID() {
			text = t.Text
			break
		}
	}
	if h.State() == transcript.StateFailed {
		return "", fmt.Errorf("%s (%w)", text, h.Err())
	}
	return text, nil
}

type metricsSummary struct {
	Upload           float64              `json:"upload_mbps"`
	Download         float64              `json:"download_mbps"`
	Latency          float64              `json:"latency_ms"`
	LatencyStatus    netmetrics.Status    `json:"latency_status"`
	PacketLoss       float64              `json:"packet_loss_pct"`
	PacketLossStatus netmetrics.Status    `json:"packet_loss_status"`
	UpdatedAt        time.Time            `json:"updated_at"`
	History          *netmetrics.Snapshot `json:"history,omitempty"`
}

func metricsReport(s netmetrics.Snapshot, history bool) metricsSummary {
	out := metricsSummary{
		Upload:           s.Bandwidth.Upload,
		Download:         s.Bandwidth.Download,
		Latency:          s.Latency.Current,
		LatencyStatus:    s.LatencyStatus(),
		PacketLoss:       s.PacketLoss.Current,
		PacketLossStatus: s.PacketLossStatus(),
		UpdatedAt:        s.UpdatedAt,
	}
	if history {
		out.History = &s
	}
	return out
}

var errBadArguments = errors.New("invalid arguments")

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadArguments, err)
	}
	return nil
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
