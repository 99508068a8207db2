// Package ws provides a WebSocket client for the netwatch gateway.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	wsprotocol "github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// ErrClosed is returned once the connection is gone.
var ErrClosed = errors.New("connection closed")

// Client is a WebSocket client for the netwatch gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]chan wsprotocol.Frame
	err     error

	events chan wsprotocol.Frame
	done   chan struct{}
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	clientCtx, cancel := context.WithCancel(context.Background())

	c := &Client{
		conn:    conn,
		ctx:     clientCtx,
		cancel:  cancel,
		pending: make(map[string]chan wsprotocol.Frame),
		events:  make(chan wsprotocol.Frame, 256),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.fail(err)
			return
		}
		frame, err := wsprotocol.UnmarshalFrame(data)
		if err != nil {
			continue
		}

		switch frame.Type {
		case wsprotocol.FrameTypeResponse:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
		case wsprotocol.FrameTypeEvent:
			select {
			case c.events <- frame:
			default:
				// consumer too slow, drop
			}
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Call sends a request and waits for its response payload.
func (c *Client) Call(ctx context.Context, method wsprotocol.Method, params, result any) error {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	frame, err := wsprotocol.NewRequestFrame(id, method, params)
	if err != nil {
		return err
	}
	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return err
	}

	ch := make(chan wsprotocol.Frame, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("ws write: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return c.closedErr()
		}
		if resp.OK == nil || !*resp.OK {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if result != nil && resp.Payload != nil {
			return json.Unmarshal(resp.Payload, result)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// SendMessage submits user text and returns the id of the assistant turn
// that will receive the reply.
func (c *Client) SendMessage(ctx context.Context, content string) (string, error) {
	var res wsprotocol.SendMessageResult
	if err := c.Call(ctx, wsprotocol.MethodSendMessage, wsprotocol.SendMessageParams{Content: content}, &res); err != nil {
		return "", err
	}
	return res.TurnID, nil
}

// Transcript fetches the visible transcript.
func (c *Client) Transcript(ctx context.Context) (transcript.Snapshot, error) {
	var snap transcript.Snapshot
	err := c.Call(ctx, wsprotocol.MethodGetTranscript, nil, &snap)
	return snap, err
}

// Metrics fetches the current metrics.
func (c *Client) Metrics(ctx context.Context) (netmetrics.Snapshot, error) {
	var snap netmetrics.Snapshot
	err := c.Call(ctx, wsprotocol.MethodGetMetrics, nil, &snap)
	return snap, err
}

// Options fetches the enhancement catalog and selection.
func (c *Client) Options(ctx context.Context) (wsprotocol.Options, error) {
	var opts wsprotocol.Options
	err := c.Call(ctx, wsprotocol.MethodGetOptions, nil, &opts)
	return opts, err
}

// SelectLanguage sets the response language.
func (c *Client) SelectLanguage(ctx context.Context, lang string) (enhance.Selection, error) {
	var sel enhance.Selection
	err := c.Call(ctx, wsprotocol.MethodSelectLanguage, wsprotocol.SelectLanguageParams{Language: lang}, &sel)
	return sel, err
}

// SelectEnhancement sets the enhancement.
func (c *Client) SelectEnhancement(ctx context.Context, group, value string) (enhance.Selection, error) {
	var sel enhance.Selection
	err := c.Call(ctx, wsprotocol.MethodSelectEnhancement, wsprotocol.SelectEnhancementParams{Group: group, Value: value}, &sel)
	return sel, err
}

// ClearSelection resets the selection.
func (c *Client) ClearSelection(ctx context.Context) (enhance.Selection, error) {
	var sel enhance.Selection
	err := c.Call(ctx, wsprotocol.MethodClearSelection, nil, &sel)
	return sel, err
}

// ReadFrame returns the next event frame.
func (c *Client) ReadFrame(ctx context.Context) (wsprotocol.Frame, error) {
	select {
	case f, ok := <-c.events:
		if !ok {
			return wsprotocol.Frame{}, c.closedErr()
		}
		return f, nil
	case <-ctx.Done():
		return wsprotocol.Frame{}, ctx.Err()
	}
}

// ReadEvent returns the next bus event carried by an event frame.
func (c *Client) ReadEvent(ctx context.Context) (events.Event, error) {
	f, err := c.ReadFrame(ctx)
	if err != nil {
		return events.Event{}, err
	}
	var e events.Event
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		return events.Event{}, fmt.Errorf("decode event %s: %w", f.Event, err)
	}
	return e, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	return err
}
