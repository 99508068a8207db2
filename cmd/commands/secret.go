package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/netwatch/internal/config"
	"github.com/dohr-michael/netwatch/internal/secrets"
)

// NewSecretCommand returns the secret subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage encrypted provider credentials",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the local age key",
				Action: runSecretInit,
			},
			{
				Name:      "set",
				Usage:     "Encrypt a value and store it in the .env file",
				ArgsUsage: "<NAME>",
				Action:    runSecretSet,
			},
		},
	}
}

func runSecretInit(_ context.Context, _ *cli.Command) error {
	id, err := secrets.GenerateIdentity(secrets.KeyPath())
	if err != nil {
		return err
	}
	fmt.Printf("Key: %s\nRecipient: %s\n", secrets.KeyPath(), id.Recipient())
	return nil
}

func runSecretSet(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: netwatch secret set <NAME>")
	}

	value, err := readSecret(name)
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("empty value")
	}

	id, err := secrets.GenerateIdentity(secrets.KeyPath())
	if err != nil {
		return err
	}
	enc, err := secrets.Encrypt(value, id.Recipient())
	if err != nil {
		return err
	}
	if err := secrets.SetEntry(config.DotenvPath(), name, enc); err != nil {
		return err
	}
	fmt.Printf("%s stored in %s\n", name, config.DotenvPath())
	return nil
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(name string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "%s: ", name)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
