package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

type fakeModel struct {
	reply string
	err   error
}

func (f fakeModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

type fakeSource struct{ m model.BaseChatModel }

func (s fakeSource) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return s.m, nil
}

type fakeMetrics struct{}

func (fakeMetrics) Current() netmetrics.Snapshot {
	var s netmetrics.Snapshot
	s.Bandwidth.Download = 98.5
	s.Latency.Current = 130
	s.PacketLoss.Current = 1.5
	s.PacketLoss.History = []netmetrics.Point{{Time: "t", Value: 1.5}}
	return s
}

func newServices(t *testing.T, m model.BaseChatModel) ws.Services {
	t.Helper()
	sel := enhance.NewSelector(nil)
	ctrl := transcript.NewController(transcript.Config{
		Models:    fakeSource{m: m},
		Decorator: sel,
	})
	t.Cleanup(ctrl.Close)
	return ws.Services{Transcript: ctrl, Metrics: fakeMetrics{}, Selector: sel}
}

func toolByName(t *testing.T, svc ws.Services, name string) handlerFunc {
	t.Helper()
	for _, tl := range tools(svc, Options{}) {
		if tl.spec.Name == name {
			return tl.run
		}
	}
	t.Fatalf("tool %q not found", name)
	return nil
}

func TestToMCPTool(t *testing.T) {
	spec := toolSpec{
		Name:        "select_enhancement",
		Description: "A test tool",
		Params: map[string]param{
			"value": {Type: "string", Description: "The value", Required: true},
			"group": {Type: "string", Description: "The group", Required: true, Enum: []string{"a", "b"}},
			"note":  {Type: "string", Description: "Optional"},
		},
	}

	data, err := json.Marshal(spec.toMCPTool().InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "object" {
		t.Errorf("type = %v", got["type"])
	}
	req, _ := got["required"].([]any)
	if len(req) != 2 || req[0] != "group" || req[1] != "value" {
		t.Errorf("required = %v, want [group value]", req)
	}
	props := got["properties"].(map[string]any)
	if enum, _ := props["group"].(map[string]any)["enum"].([]any); len(enum) != 2 {
		t.Errorf("group enum = %v", enum)
	}
}

func TestToMCPTool_NoParams(t *testing.T) {
	data, _ := json.Marshal(toolSpec{Name: "clear_selection"}.toMCPTool().InputSchema)
	if strings.Contains(string(data), "required") {
		t.Errorf("schema has required: %s", data)
	}
}

func TestNewServer(t *testing.T) {
	svc := newServices(t, fakeModel{reply: "ok"})
	if NewServer(svc, Options{}) == nil {
		t.Fatal("NewServer returned nil")
	}
	if NewServer(svc, Options{Filter: []string{"network_metrics"}}) == nil {
		t.Fatal("NewServer with filter returned nil")
	}
	if len(ToolNames()) != 6 {
		t.Errorf("ToolNames = %v", ToolNames())
	}
}

func TestNetworkMetricsTool(t *testing.T) {
	run := toolByName(t, newServices(t, fakeModel{}), "network_metrics")

	out, err := run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if got["latency_status"] != "warning" || got["packet_loss_status"] != "error" {
		t.Errorf("statuses = %v / %v", got["latency_status"], got["packet_loss_status"])
	}
	if _, ok := got["history"]; ok {
		t.Error("history included without asking")
	}

	out, err = run(context.Background(), json.RawMessage(`{"include_history":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"history"`) {
		t.Errorf("history missing: %s", out)
	}

	if _, err := run(context.Background(), json.RawMessage(`{"include_history":"yes"}`)); !errors.Is(err, errBadArguments) {
		t.Errorf("err = %v, want bad arguments", err)
	}
}

func TestAskTool(t *testing.T) {
	run := toolByName(t, newServices(t, fakeModel{reply: "Latency looks fine."}), "ask_network_assistant")

	out, err := run(context.Background(), json.RawMessage(`{"question":"how is latency?"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Latency looks fine." {
		t.Errorf("answer = %q", out)
	}

	if _, err := run(context.Background(), json.RawMessage(`{"question":"  "}`)); !errors.Is(err, transcript.ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}

func TestAskTool_Failure(t *testing.T) {
	run := toolByName(t, newServices(t, fakeModel{err: errors.New("429 rate limit")}), "ask_network_assistant")

	_, err := run(context.Background(), json.RawMessage(`{"question":"hello"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), transcript.DefaultErrorMessage) {
		t.Errorf("err = %v", err)
	}
}

func TestSelectionTools(t *testing.T) {
	svc := newServices(t, fakeModel{})

	if _, err := toolByName(t, svc, "select_language")(context.Background(), json.RawMessage(`{"language":"german"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := toolByName(t, svc, "select_enhancement")(context.Background(), json.RawMessage(`{"group":"secondary_emotions","value":"shame"}`)); err != nil {
		t.Fatal(err)
	}
	sel := svc.Selector.Current()
	if sel.Language != "German" || sel.Enhancement != "Shame" {
		t.Errorf("selection = %+v", sel)
	}

	if _, err := toolByName(t, svc, "select_language")(context.Background(), json.RawMessage(`{"language":"Klingon"}`)); !errors.Is(err, enhance.ErrUnknownLanguage) {
		t.Errorf("err = %v", err)
	}

	if _, err := toolByName(t, svc, "clear_selection")(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if svc.Selector.Current().Explicit {
		t.Error("selection still explicit after clear")
	}

	out, err := toolByName(t, svc, "list_options")(context.Background(), nil)
	if err != nil || !strings.Contains(out, "Primary Emotions") {
		t.Errorf("options = %q, %v", out, err)
	}
}
