package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	netwatchmcp "github.com/dohr-michael/netwatch/internal/mcp"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose the network assistant as an MCP server (stdio)",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "tool",
				Usage: "Tool name to expose (repeatable, empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout is used for the MCP stdio transport
	setupLogging(cmd, "warn", os.Stderr)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := newStack(cfg)
	defer st.close()

	st.simulator.Sample()
	go st.simulator.Run(ctx)

	filter := cmd.StringSlice("tool")
	slog.Debug("starting MCP server", "filter", filter, "tools", netwatchmcp.ToolNames())

	server := netwatchmcp.NewServer(st.services(), netwatchmcp.Options{Filter: filter})
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
