// Package prediction periodically asks the model for a short forecast based
// on the current network metrics and posts it into the transcript.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/models"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// JobName is the scheduler entry name of the prediction job.
const JobName = "network-prediction"

// DefaultSystemPrompt instructs the model for prediction requests.
const DefaultSystemPrompt = "You are a network analysis expert. Provide concise predictions (2-3 sentences) based on provided metrics. Focus on performance trends and maintenance recommendations. Use simple language and bullet points when possible."

// Prefix marks prediction turns in the transcript.
const Prefix = "📡 Network Prediction:\n"

// MetricsSource supplies the current metrics. *netmetrics.Simulator satisfies it.
type MetricsSource interface {
	Current() netmetrics.Snapshot
}

// TurnAppender records a finished turn. *transcript.Controller satisfies it.
type TurnAppender interface {
	AppendTurn(role transcript.Role, text string, hidden bool) (transcript.Turn, error)
}

// Config configures a Predictor.
type Config struct {
	Models       transcript.ModelSource
	Metrics      MetricsSource
	Transcript   TurnAppender
	Bus          *events.Bus // optional
	SystemPrompt string
	Provider     string
	Logger       *slog.Logger
}

// Predictor runs one prediction per call to Run.
type Predictor struct {
	cfg Config
}

// New creates a Predictor.
func New(cfg Config) *Predictor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Predictor{cfg: cfg}
}

// BuildPrompt renders the metrics into the prediction request.
func BuildPrompt(s netmetrics.Snapshot) string {
	return fmt.Sprintf("Current network metrics:\n- Bandwidth: Upload %.2fMbps, Download %.2fMbps\n- Latency: %.2fms\n- Packet Loss: %.2f%%\nProvide a brief network performance prediction and recommendations.",
		s.Bandwidth.Upload, s.Bandwidth.Download, s.Latency.Current, s.PacketLoss.Current)
}

// Run is the scheduler job. Failures are logged and otherwise ignored.
func (p *Predictor) Run(ctx context.Context) {
	if _, err := p.Predict(ctx); err != nil {
		p.cfg.Logger.Warn("prediction failed", "error", err)
	}
}

// Predict requests a prediction and appends it as an assistant turn.
func (p *Predictor) Predict(ctx context.Context) (transcript.Turn, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(p.cfg.SystemPrompt),
		schema.UserMessage(BuildPrompt(p.cfg.Metrics.Current())),
	}

	start := time.Now()
	text, err := p.generate(ctx, msgs)
	p.publishCall(len(msgs), len(text), time.Since(start), err)
	if err != nil {
		return transcript.Turn{}, models.HandleError(err)
	}

	turn, err := p.cfg.Transcript.AppendTurn(transcript.RoleAssistant, Prefix+text, false)
	if err != nil {
		return transcript.Turn{}, fmt.Errorf("append prediction: %w", err)
	}

	if p.cfg.Bus != nil {
		p.cfg.Bus.Publish(events.NewTypedEvent(events.SourcePrediction, events.PredictionPayload{
			TurnID:  turn.ID,
			Content: text,
		}))
	}
	p.cfg.Logger.Debug("prediction appended", "turn_id", turn.ID)
	return turn, nil
}

func (p *Predictor) generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	m, err := p.cfg.Models.Get(ctx, p.cfg.Provider)
	if err != nil {
		return "", err
	}
	resp, err := m.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("empty prediction")
	}
	return resp.Content, nil
}

func (p *Predictor) publishCall(msgCount, chars int, d time.Duration, err error) {
	if p.cfg.Bus == nil {
		return
	}
	payload := events.LLMCallPayload{
		Kind:         events.LLMCallGenerate,
		Provider:     p.cfg.Provider,
		MessageCount: msgCount,
		OutputChars:  chars,
		Duration:     d,
	}
	if named, ok := p.cfg.Models.(interface{ DefaultName() string }); ok && payload.Provider == "" {
		payload.Provider = named.DefaultName()
	}
	if err != nil {
		payload.Error = err.Error()
	}
	p.cfg.Bus.Publish(events.NewTypedEvent(events.SourcePrediction, payload))
}
