package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/netwatch/clients/tui"
	wsclient "github.com/dohr-michael/netwatch/clients/ws"
)

// NewTUICommand returns the tui subcommand.
func NewTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive TUI",
		Flags: []cli.Flag{gatewayFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// The TUI owns the terminal.
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

			client, err := wsclient.Dial(ctx, gatewayURL(cmd))
			if err != nil {
				return fmt.Errorf("connect to gateway (is `netwatch gateway` running?): %w", err)
			}
			defer client.Close()

			return tui.Run(ctx, client)
		},
	}
}
