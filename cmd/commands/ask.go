package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	wsclient "github.com/dohr-michael/netwatch/clients/ws"
	"github.com/dohr-michael/netwatch/internal/events"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a message to the assistant and print the response",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.BoolFlag{
				Name:    "markdown",
				Aliases: []string{"m"},
				Usage:   "Render the final answer as markdown instead of streaming it",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Response timeout in seconds",
				Value: 120,
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	message := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("usage: netwatch ask <message>")
	}
	render := cmd.Bool("markdown") && term.IsTerminal(int(os.Stdout.Fd()))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Int("timeout"))*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, gatewayURL(cmd))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	turnID, err := client.SendMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	// Read events until the assistant.message of our turn
	streamed := false
	for {
		evt, err := client.ReadEvent(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for response")
			}
			return fmt.Errorf("read event: %w", err)
		}

		switch evt.Type {
		case events.EventAssistantStream:
			payload, ok := events.GetAssistantStreamPayload(evt)
			if !ok || payload.TurnID != turnID || render {
				continue
			}
			if payload.Phase == events.StreamPhaseDelta {
				fmt.Fprint(os.Stdout, payload.Content)
				streamed = true
			}

		case events.EventAssistantMessage:
			payload, ok := events.GetAssistantMessagePayload(evt)
			if !ok || payload.TurnID != turnID {
				continue
			}
			if payload.Error != "" {
				if streamed {
					fmt.Fprintln(os.Stdout)
				}
				fmt.Fprintln(os.Stderr, payload.Content)
				return fmt.Errorf("assistant error: %s", payload.Error)
			}
			switch {
			case render:
				out, err := glamour.Render(payload.Content, "dark")
				if err != nil {
					out = payload.Content
				}
				fmt.Fprint(os.Stdout, out)
			case streamed:
				fmt.Fprintln(os.Stdout)
			default:
				fmt.Fprintln(os.Stdout, payload.Content)
			}
			return nil
		}
	}
}
