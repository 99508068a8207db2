// Command chat_flow exercises a full chat round trip against a running
// netwatch gateway.
//
// It waits for a live metrics sample, sends one message, checks that the
// streamed deltas add up to the final assistant message, then verifies the
// transcript ends with the user turn followed by its answer.
//
// Usage: chat_flow -gateway ws://127.0.0.1:PORT/api/ws -message "How is my latency?"
//
// Exit codes:
//
//	0 = all checks passed
//	1 = a check failed
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	wsclient "github.com/dohr-michael/netwatch/clients/ws"
	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

func main() {
	gatewayURL := flag.String("gateway", "ws://127.0.0.1:18430/api/ws", "Gateway WS URL")
	message := flag.String("message", "How is my network doing?", "Message to send")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *gatewayURL, *message); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, gatewayURL, message string) error {
	// ── Step 1: Connect ─────────────────────────────────────────────────
	client, err := wsclient.Dial(ctx, gatewayURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()
	fmt.Println("CHECK connected")

	// ── Step 2: Wait for a live metrics sample ──────────────────────────
	for {
		evt, err := client.ReadEvent(ctx)
		if err != nil {
			return fmt.Errorf("waiting for metrics: %w", err)
		}
		if p, ok := events.GetMetricsSamplePayload(evt); ok && evt.Type == events.EventMetricsSample {
			fmt.Printf("CHECK metrics sample: latency=%.0fms (%s)\n", p.Latency, p.LatencyStatus)
			break
		}
	}

	// ── Step 3: Send and follow the stream ──────────────────────────────
	turnID, err := client.SendMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("CHECK message accepted: assistant turn %s\n", turnID)

	var streamed strings.Builder
	var final events.AssistantMessagePayload
	for done := false; !done; {
		evt, err := client.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("timeout waiting for the answer")
			}
			return fmt.Errorf("read event: %w", err)
		}

		switch evt.Type {
		case events.EventAssistantStream:
			p, ok := events.GetAssistantStreamPayload(evt)
			if ok && p.TurnID == turnID && p.Phase == events.StreamPhaseDelta {
				streamed.WriteString(p.Content)
			}
		case events.EventAssistantMessage:
			p, ok := events.GetAssistantMessagePayload(evt)
			if ok && p.TurnID == turnID {
				final = p
				done = true
			}
		}
	}

	// ── Step 4: Verify ──────────────────────────────────────────────────
	if final.Error != "" {
		fmt.Printf("CHECK reply failed as reported: %s\n", final.Error)
	} else {
		if streamed.String() != final.Content {
			return fmt.Errorf("streamed text (%d chars) differs from final message (%d chars)",
				streamed.Len(), len(final.Content))
		}
		fmt.Printf("CHECK streamed %d chars match the final message\n", streamed.Len())
	}

	snap, err := client.Transcript(ctx)
	if err != nil {
		return fmt.Errorf("get transcript: %w", err)
	}
	n := len(snap.Turns)
	if n < 2 {
		return fmt.Errorf("transcript has %d turns, want at least 2", n)
	}
	user, answer := snap.Turns[n-2], snap.Turns[n-1]
	if answer.ID != turnID || answer.Role != transcript.RoleAssistant || user.Role != transcript.RoleUser {
		return fmt.Errorf("transcript tail is %s/%s, want user then %s", user.Role, answer.ID, turnID)
	}
	if !strings.HasSuffix(user.Text, message) {
		return fmt.Errorf("user turn %q does not carry the message", user.Text)
	}
	if snap.Pending {
		return fmt.Errorf("transcript still pending after the final message")
	}

	fmt.Println("CHECK all flow checks passed")
	return nil
}
