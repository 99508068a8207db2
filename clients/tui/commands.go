package tui

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind enumerates the slash commands understood by the TUI.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdQuit
	CmdHelp
	CmdClear
	CmdLanguage
	CmdEmotion
	CmdOptions
)

// Command is a parsed slash command.
type Command struct {
	Kind  CommandKind
	Args  []string
	Group string
	Value string
}

var errUsage = errors.New("usage")

const helpText = `/lang <language>          answer in a language
/emotion <group> <value>  add an emotional enhancement (group: primary, secondary)
/options                  list languages and enhancements
/clear                    drop the current selection
/quit                     leave`

// ParseCommand parses a line starting with "/". Lines that are not commands
// return CmdNone.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdNone}, nil
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", errUsage)
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit", "q":
		return Command{Kind: CmdQuit}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	case "clear":
		return Command{Kind: CmdClear}, nil
	case "options":
		return Command{Kind: CmdOptions}, nil
	case "lang", "language":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: /lang <language>", errUsage)
		}
		return Command{Kind: CmdLanguage, Args: args, Value: args[0]}, nil
	case "emotion", "enhance":
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: /emotion <group> <value>", errUsage)
		}
		return Command{
			Kind:  CmdEmotion,
			Args:  args,
			Group: groupID(args[0]),
			Value: strings.Join(args[1:], " "),
		}, nil
	default:
		return Command{}, fmt.Errorf("unknown command /%s (try /help)", name)
	}
}

// groupID expands the short group aliases.
func groupID(name string) string {
	switch strings.ToLower(name) {
	case "primary":
		return "primary_emotions"
	case "secondary":
		return "secondary_emotions"
	default:
		return name
	}
}
