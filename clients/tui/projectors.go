package tui

import (
	"encoding/json"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	ws "github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// Project converts a gateway WS Frame into a typed tea.Msg.
// Returns nil for frames that don't map to a TUI message.
func Project(frame ws.Frame) tea.Msg {
	if frame.Type != ws.FrameTypeEvent || frame.Event == "" {
		return nil
	}
	var evt events.Event
	if err := json.Unmarshal(frame.Payload, &evt); err != nil {
		return nil
	}

	switch events.EventType(frame.Event) {
	case events.EventTurnAppended:
		return projectTurn(evt)
	case events.EventAssistantStream:
		return projectStream(evt)
	case events.EventAssistantMessage:
		p, ok := events.GetAssistantMessagePayload(evt)
		if !ok {
			return nil
		}
		return AssistantMessageMsg{TurnID: p.TurnID, Content: p.Content, Error: p.Error}
	case events.EventMetricsSample:
		p, ok := events.GetMetricsSamplePayload(evt)
		if !ok {
			return nil
		}
		return MetricsSampleMsg{Sample: p}
	case events.EventSelectionChanged:
		p, ok := events.GetSelectionChangedPayload(evt)
		if !ok {
			return nil
		}
		return SelectionMsg{Selection: enhance.Selection{
			Language:    p.Language,
			GroupTitle:  p.Enhancement,
			Enhancement: p.Value,
		}}
	case events.EventPrediction:
		p, ok := events.GetPredictionPayload(evt)
		if !ok {
			return nil
		}
		return PredictionMsg{TurnID: p.TurnID}
	default:
		return nil
	}
}

func projectTurn(evt events.Event) tea.Msg {
	p, ok := events.GetTurnAppendedPayload(evt)
	if !ok || p.Hidden {
		return nil
	}
	created := evt.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	return TurnAppendedMsg{Turn: transcript.Turn{
		ID:        p.TurnID,
		Role:      transcript.Role(p.Role),
		Text:      p.Text,
		CreatedAt: created,
	}}
}

func projectStream(evt events.Event) tea.Msg {
	p, ok := events.GetAssistantStreamPayload(evt)
	if !ok {
		return nil
	}
	switch p.Phase {
	case events.StreamPhaseStart:
		return StreamStartMsg{TurnID: p.TurnID}
	case events.StreamPhaseDelta:
		return StreamDeltaMsg{TurnID: p.TurnID, Content: p.Content, Index: p.Index}
	case events.StreamPhaseEnd:
		return StreamEndMsg{TurnID: p.TurnID}
	default:
		return nil
	}
}
