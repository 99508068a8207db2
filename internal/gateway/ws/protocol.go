package ws

import "encoding/json"

// FrameType represents the type of WebSocket frame.
type FrameType string

const (
	FrameTypeRequest  FrameType = "req"
	FrameTypeResponse FrameType = "res"
	FrameTypeEvent    FrameType = "event"
)

// Method represents a WebSocket request method.
type Method string

const (
	MethodSendMessage       Method = "send_message"
	MethodGetTranscript     Method = "get_transcript"
	MethodGetMetrics        Method = "get_metrics"
	MethodGetOptions        Method = "get_options"
	MethodSelectLanguage    Method = "select_language"
	MethodSelectEnhancement Method = "select_enhancement"
	MethodClearSelection    Method = "clear_selection"
)

// Frame is the WebSocket protocol envelope.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
}

// SendMessageParams are the params of send_message.
type SendMessageParams struct {
	Content string `json:"content"`
}

// SendMessageResult is the payload of a successful send_message.
type SendMessageResult struct {
	TurnID string `json:"turn_id"`
}

// SelectLanguageParams are the params of select_language.
type SelectLanguageParams struct {
	Language string `json:"language"`
}

// SelectEnhancementParams are the params of select_enhancement.
type SelectEnhancementParams struct {
	Group string `json:"group"`
	Value string `json:"value"`
}

// MarshalFrame serializes a Frame to JSON bytes.
func MarshalFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalFrame deserializes JSON bytes into a Frame.
func UnmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// NewRequestFrame creates a request Frame.
func NewRequestFrame(id string, method Method, params any) (Frame, error) {
	f := Frame{Type: FrameTypeRequest, ID: id, Method: string(method)}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Frame{}, err
		}
		f.Params = data
	}
	return f, nil
}

// NewEventFrame creates a Frame for broadcasting an event.
func NewEventFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: data,
	}, nil
}

// NewResponseFrame creates a response Frame.
func NewResponseFrame(id string, ok bool, payload any, errMsg string) (Frame, error) {
	f := Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: errMsg,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = data
	}
	return f, nil
}
