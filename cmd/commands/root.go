package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/netwatch/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "netwatch",
		Usage: "Network monitoring assistant with a streaming chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewGatewayCommand(),
			NewAskCommand(),
			NewTUICommand(),
			NewStatusCommand(),
			NewMetricsCommand(),
			NewUsageCommand(),
			NewSecretCommand(),
			NewMCPServeCommand(),
		},
	}
}
