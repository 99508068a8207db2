package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TRANSCRIPT EVENTS
// =============================================================================

type TurnAppendedPayload struct {
	TurnID string `json:"turn_id"`
	Role   string `json:"role"`
	Text   string `json:"text"`
	Hidden bool   `json:"hidden,omitempty"`
	Index  int    `json:"index"`
}

func (TurnAppendedPayload) EventType() EventType { return EventTurnAppended }

type StreamPhase string

const (
	StreamPhaseStart StreamPhase = "start"
	StreamPhaseDelta StreamPhase = "delta"
	StreamPhaseEnd   StreamPhase = "end"
)

type AssistantStreamPayload struct {
	Phase   StreamPhase `json:"phase"`
	TurnID  string      `json:"turn_id"`
	Content string      `json:"content"`
	Index   int         `json:"index"`
}

func (AssistantStreamPayload) EventType() EventType { return EventAssistantStream }

// AssistantMessagePayload carries the final text of a submission. On failure
// Content is the user-facing error text and Error the diagnostic cause.
type AssistantMessagePayload struct {
	TurnID  string `json:"turn_id"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

func (AssistantMessagePayload) EventType() EventType { return EventAssistantMessage }

// =============================================================================
// SELECTION EVENTS
// =============================================================================

type SelectionChangedPayload struct {
	Language    string `json:"language,omitempty"`
	Enhancement string `json:"enhancement,omitempty"`
	Value       string `json:"value,omitempty"`
}

func (SelectionChangedPayload) EventType() EventType { return EventSelectionChanged }

// =============================================================================
// METRICS EVENTS
// =============================================================================

type MetricsSamplePayload struct {
	Time             time.Time `json:"time"`
	Upload           float64   `json:"upload"`
	Download         float64   `json:"download"`
	Latency          float64   `json:"latency"`
	PacketLoss       float64   `json:"packet_loss"`
	LatencyStatus    string    `json:"latency_status"`
	PacketLossStatus string    `json:"packet_loss_status"`
}

func (MetricsSamplePayload) EventType() EventType { return EventMetricsSample }

type PredictionPayload struct {
	TurnID  string `json:"turn_id"`
	Content string `json:"content"`
}

func (PredictionPayload) EventType() EventType { return EventPrediction }

// =============================================================================
// INTERNAL EVENTS
// =============================================================================

type LLMCallKind string

const (
	LLMCallStream   LLMCallKind = "stream"
	LLMCallGenerate LLMCallKind = "generate"
)

type LLMCallPayload struct {
	Kind         LLMCallKind   `json:"kind"`
	Provider     string        `json:"provider,omitempty"`
	MessageCount int           `json:"message_count,omitempty"`
	OutputChars  int           `json:"output_chars,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func (LLMCallPayload) EventType() EventType { return EventLLMCall }

type ConfigReloadedPayload struct {
	Path            string   `json:"path"`
	ModelsChanged   bool     `json:"models_changed"`
	RestartRequired []string `json:"restart_required,omitempty"`
}

func (ConfigReloadedPayload) EventType() EventType { return EventConfigReloaded }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

// NewTypedEvent wraps payload in an Event of its own type.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return NewEvent(payload.EventType(), source, toMap(payload))
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	if e.Type != result.EventType() {
		return result, false
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetTurnAppendedPayload(e Event) (TurnAppendedPayload, bool) {
	return ExtractPayload[TurnAppendedPayload](e)
}

func GetAssistantStreamPayload(e Event) (AssistantStreamPayload, bool) {
	return ExtractPayload[AssistantStreamPayload](e)
}

func GetAssistantMessagePayload(e Event) (AssistantMessagePayload, bool) {
	return ExtractPayload[AssistantMessagePayload](e)
}

func GetSelectionChangedPayload(e Event) (SelectionChangedPayload, bool) {
	return ExtractPayload[SelectionChangedPayload](e)
}

func GetMetricsSamplePayload(e Event) (MetricsSamplePayload, bool) {
	return ExtractPayload[MetricsSamplePayload](e)
}

func GetPredictionPayload(e Event) (PredictionPayload, bool) {
	return ExtractPayload[PredictionPayload](e)
}

func GetLLMCallPayload(e Event) (LLMCallPayload, bool) {
	return ExtractPayload[LLMCallPayload](e)
}
