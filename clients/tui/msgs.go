package tui

import (
	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	wsprotocol "github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// TurnAppendedMsg carries a turn newly added to the transcript.
type TurnAppendedMsg struct {
	Turn transcript.Turn
}

// StreamStartMsg signals that the assistant began answering TurnID.
type StreamStartMsg struct {
	TurnID string
}

// StreamDeltaMsg carries an incremental text chunk.
type StreamDeltaMsg struct {
	TurnID  string
	Content string
	Index   int
}

// StreamEndMsg signals the end of streaming for TurnID.
type StreamEndMsg struct {
	TurnID string
}

// AssistantMessageMsg carries the final text of a submission.
type AssistantMessageMsg struct {
	TurnID  string
	Content string
	Error   string
}

// MetricsSampleMsg carries one live metrics sample.
type MetricsSampleMsg struct {
	Sample events.MetricsSamplePayload
}

// SelectionMsg carries the current enhancement selection.
type SelectionMsg struct {
	Selection enhance.Selection
}

// PredictionMsg signals that a scheduled prediction was added.
type PredictionMsg struct {
	TurnID string
}

// SnapshotMsg carries the transcript loaded at startup.
type SnapshotMsg struct {
	Snapshot transcript.Snapshot
}

// MetricsMsg carries the metrics loaded at startup.
type MetricsMsg struct {
	Snapshot netmetrics.Snapshot
}

// OptionsMsg carries the enhancement catalog.
type OptionsMsg struct {
	Options wsprotocol.Options
}

// SentMsg acknowledges a submitted message.
type SentMsg struct {
	TurnID string
}

// ErrorMsg reports a failed gateway call.
type ErrorMsg struct {
	Err error
}

// DisconnectedMsg signals a lost WS connection.
type DisconnectedMsg struct {
	Err error
}
