package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/models"
)

var (
	// ErrEmptyInput is returned by Submit for blank text. Nothing is changed.
	ErrEmptyInput = errors.New("empty input")
	// ErrPending is returned by Submit while another reply is streaming.
	ErrPending = errors.New("a reply is already in progress")
	// ErrEmptyStream marks a stream that ended without producing any text.
	ErrEmptyStream = errors.New("model returned an empty response")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller closed")
)

// DefaultErrorMessage replaces the assistant turn when a reply fails.
const DefaultErrorMessage = "⚠️ Error processing request. Please try again."

// ModelSource resolves a chat model by provider name ("" = default).
// *models.Registry satisfies it.
type ModelSource interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Decorator rewrites the user text before it is recorded and sent.
type Decorator interface {
	Decorate(prompt string) (string, error)
}

// Config configures a Controller.
type Config struct {
	Models       ModelSource
	Bus          *events.Bus // optional
	Decorator    Decorator   // optional
	SystemPrompt string
	ErrorMessage string
	Provider     string // provider name, "" = default
	Logger       *slog.Logger
}

// Controller owns the transcript and the single in-flight submission.
type Controller struct {
	models       ModelSource
	bus          *events.Bus
	decorator    Decorator
	systemPrompt string
	errorMessage string
	provider     string
	logger       *slog.Logger

	mu      sync.Mutex
	turns   []Turn
	current *Handle
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller with an empty transcript.
func NewController(cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		models:       cfg.Models,
		bus:          cfg.Bus,
		decorator:    cfg.Decorator,
		systemPrompt: cfg.SystemPrompt,
		errorMessage: cfg.ErrorMessage,
		provider:     cfg.Provider,
		logger:       cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	if c.errorMessage == "" {
		c.errorMessage = DefaultErrorMessage
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Submit records the user text and an empty assistant turn, then streams
// the reply into that turn in the background.
func (c *Controller) Submit(text string) (*Handle, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	prompt := text
	if c.decorator != nil {
		decorated, err := c.decorator.Decorate(text)
		if err != nil {
			return nil, fmt.Errorf("decorate prompt: %w", err)
		}
		prompt = decorated
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrPending
	}

	history := c.contextLocked()

	user := newTurn(RoleUser, prompt, false)
	c.turns = append(c.turns, user)
	userIdx := len(c.turns) - 1

	reply := newTurn(RoleAssistant, "", false)
	c.turns = append(c.turns, reply)
	replyIdx := len(c.turns) - 1

	h := newHandle(reply.ID)
	c.current = h
	c.wg.Add(1)
	c.mu.Unlock()

	c.publishAppended(user, userIdx)
	c.publishAppended(reply, replyIdx)

	msgs := c.buildMessages(history, prompt)
	go c.stream(h, msgs)

	return h, nil
}

// AppendTurn adds a complete turn outside the submission flow. It never
// touches the in-progress assistant turn.
func (c *Controller) AppendTurn(role Role, text string, hidden bool) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("invalid role %q", role)
	}

	t := newTurn(role, text, hidden)

	c.mu.Lock()
	c.turns = append(c.turns, t)
	idx := len(c.turns) - 1
	c.mu.Unlock()

	c.publishAppended(t, idx)
	return t, nil
}

// Turns returns a copy of every turn, hidden ones included.
func (c *Controller) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Visible returns the turns meant for display.
func (c *Controller) Visible() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

// Pending reports whether a reply is streaming.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Snapshot returns the visible turns and pending state atomically.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{Turns: c.visibleLocked(), Pending: c.current != nil}
	if c.current != nil {
		s.PendingTurnID = c.current.turnID
	}
	return s
}

// Close cancels the in-flight stream, if any, and waits for it to settle.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) visibleLocked() []Turn {
	out := make([]Turn, 0, len(c.turns))
	for _, t := range c.turns {
		if !t.Hidden {
			out = append(out, t)
		}
	}
	return out
}

// contextLocked returns the turns sent with the next request.
func (c *Controller) contextLocked() []Turn {
	out := make([]Turn, 0, len(c.turns))
	for _, t := range c.turns {
		if t.Hidden {
			continue
		}
		if t.Role == RoleAssistant && t.Text == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *Controller) buildMessages(history []Turn, prompt string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	if c.systemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(c.systemPrompt))
	}
	for _, t := range history {
		switch t.Role {
		case RoleUser:
			msgs = append(msgs, schema.UserMessage(t.Text))
		case RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Text, nil))
		}
	}
	return append(msgs, schema.UserMessage(prompt))
}

func (c *Controller) stream(h *Handle, msgs []*schema.Message) {
	defer c.wg.Done()

	start := time.Now()
	c.publishStream(events.StreamPhaseStart, h.turnID, "", 0)

	chars, err := c.consume(h, msgs)
	if err == nil && chars == 0 {
		err = ErrEmptyStream
	}

	c.publishLLMCall(len(msgs), chars, time.Since(start), err)

	if err != nil {
		err = models.HandleError(err)
		c.logger.Error("stream failed", "turn_id", h.turnID, "error", err)
		c.setText(h.turnID, c.errorMessage)
	}

	c.mu.Lock()
	final := c.textLocked(h.turnID)
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()

	c.publishStream(events.StreamPhaseEnd, h.turnID, "", 0)
	msg := events.AssistantMessagePayload{TurnID: h.turnID, Content: final}
	if err != nil {
		msg.Error = err.Error()
	}
	c.publish(events.NewTypedEvent(events.SourceTranscript, msg))

	h.finish(err)
}

// consume reads the model stream into the handle's turn and returns the
// number of characters received.
func (c *Controller) consume(h *Handle, msgs []*schema.Message) (int, error) {
	m, err := c.models.Get(c.ctx, c.provider)
	if err != nil {
		return 0, err
	}

	sr, err := m.Stream(c.ctx, msgs)
	if err != nil {
		return 0, err
	}
	defer sr.Close()

	chars, idx := 0, 0
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return chars, nil
		}
		if err != nil {
			return chars, err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		c.appendText(h.turnID, chunk.Content)
		chars += len(chunk.Content)
		c.publishStream(events.StreamPhaseDelta, h.turnID, chunk.Content, idx)
		idx++
	}
}

func (c *Controller) appendText(turnID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(turnID); i >= 0 {
		c.turns[i].Text += text
	}
}

func (c *Controller) setText(turnID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(turnID); i >= 0 {
		c.turns[i].Text = text
	}
}

func (c *Controller) textLocked(turnID string) string {
	if i := c.indexLocked(turnID); i >= 0 {
		return c.turns[i].Text
	}
	return ""
}

// indexLocked finds a turn by id, scanning from the end where the
// in-progress turn usually sits.
func (c *Controller) indexLocked(turnID string) int {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].ID == turnID {
			return i
		}
	}
	return -1
}

func (c *Controller) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Controller) publishAppended(t Turn, idx int) {
	c.publish(events.NewTypedEvent(events.SourceTranscript, events.TurnAppendedPayload{
		TurnID: t.ID,
		Role:   string(t.Role),
		Text:   t.Text,
		Hidden: t.Hidden,
		Index:  idx,
	}))
}

func (c *Controller) publishStream(phase events.StreamPhase, turnID, content string, idx int) {
	c.publish(events.NewTypedEvent(events.SourceTranscript, events.AssistantStreamPayload{
		Phase:   phase,
		TurnID:  turnID,
		Content: content,
		Index:   idx,
	}))
}

func (c *Controller) publishLLMCall(msgCount, chars int, d time.Duration, err error) {
	p := events.LLMCallPayload{
		Kind:         events.LLMCallStream,
		Provider:     c.providerName(),
		MessageCount: msgCount,
		OutputChars:  chars,
		Duration:     d,
	}
	if err != nil {
		p.Error = err.Error()
	}
	c.publish(events.NewTypedEvent(events.SourceTranscript, p))
}

func (c *Controller) providerName() string {
	if c.provider != "" {
		return c.provider
	}
	if named, ok := c.models.(interface{ DefaultName() string }); ok {
		return named.DefaultName()
	}
	return ""
}
