// Package events is the in-process event bus that carries transcript,
// metrics and selection changes to the gateway and diagnostics.
package events

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// EventType names an event.
type EventType string

const (
	// Transcript
	EventTurnAppended     EventType = "turn.appended"
	EventAssistantStream  EventType = "assistant.stream"
	EventAssistantMessage EventType = "assistant.message"

	// Prompt enhancement selection
	EventSelectionChanged EventType = "selection.changed"

	// Network metrics feed and predictions
	EventMetricsSample EventType = "metrics.sample"
	EventPrediction    EventType = "prediction.generated"

	// Internal, not forwarded to clients
	EventLLMCall        EventType = "internal.llm.call"
	EventConfigReloaded EventType = "internal.config.reloaded"
)

// Internal reports whether an event stays inside the process.
func (t EventType) Internal() bool {
	return strings.HasPrefix(string(t), "internal.")
}

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceTranscript EventSource = "transcript"
	SourceMetrics    EventSource = "metrics"
	SourcePrediction EventSource = "prediction"
	SourceGateway    EventSource = "gateway"
	SourceWS         EventSource = "ws"
)

// Event is one published fact. Payload holds the JSON form of a typed
// payload; see NewTypedEvent and the Get*Payload helpers.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

var lastEventSeq atomic.Uint64

// NewEvent stamps an event with a unique, increasing ID.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	now := time.Now()
	return Event{
		ID:        fmt.Sprintf("%d-%d", now.UnixNano(), lastEventSeq.Add(1)),
		Type:      eventType,
		Timestamp: now,
		Source:    source,
		Payload:   payload,
	}
}
