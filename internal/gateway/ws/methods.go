package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errInvalidParams = errors.New("invalid params")

// methodHandler answers one request method. The result becomes the
// response payload.
type methodHandler func(svc Services, params json.RawMessage) (any, error)

var methods = map[Method]methodHandler{
	MethodSendMessage: func(svc Services, raw json.RawMessage) (any, error) {
		var p SendMessageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		h, err := svc.Transcript.Submit(p.Content)
		if err != nil {
			return nil, err
		}
		return SendMessageResult{TurnID: h.TurnID()}, nil
	},
	MethodGetTranscript: func(svc Services, _ json.RawMessage) (any, error) {
		return svc.Transcript.Snapshot(), nil
	},
	MethodGetMetrics: func(svc Services, _ json.RawMessage) (any, error) {
		return svc.Metrics.Current(), nil
	},
	MethodGetOptions: func(svc Services, _ json.RawMessage) (any, error) {
		return OptionsOf(svc.Selector), nil
	},
	MethodSelectLanguage: func(svc Services, raw json.RawMessage) (any, error) {
		var p SelectLanguageParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := svc.Selector.SelectLanguage(p.Language); err != nil {
			return nil, err
		}
		return svc.Selector.Current(), nil
	},
	MethodSelectEnhancement: func(svc Services, raw json.RawMessage) (any, error) {
		var p SelectEnhancementParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := svc.Selector.SelectEnhancement(p.Group, p.Value); err != nil {
			return nil, err
		}
		return svc.Selector.Current(), nil
	},
	MethodClearSelection: func(svc Services, _ json.RawMessage) (any, error) {
		svc.Selector.Clear()
		return svc.Selector.Current(), nil
	},
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errInvalidParams
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidParams
	}
	return nil
}

// Dispatch runs a request frame against svc and builds its response.
func Dispatch(svc Services, req Frame) (Frame, error) {
	handle, ok := methods[Method(req.Method)]
	if !ok {
		return NewResponseFrame(req.ID, false, nil, fmt.Sprintf("unknown method: %s", req.Method))
	}
	result, err := handle(svc, req.Params)
	if err != nil {
		return NewResponseFrame(req.ID, false, nil, err.Error())
	}
	return NewResponseFrame(req.ID, true, result, "")
}
