package tui

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line  string
		kind  CommandKind
		group string
		value string
	}{
		{"hello there", CmdNone, "", ""},
		{"/quit", CmdQuit, "", ""},
		{"/Q", CmdQuit, "", ""},
		{"/help", CmdHelp, "", ""},
		{"/clear", CmdClear, "", ""},
		{"/options", CmdOptions, "", ""},
		{"/lang french", CmdLanguage, "", "french"},
		{"/emotion primary Anger", CmdEmotion, "primary_emotions", "Anger"},
		{"/emotion secondary_emotions Shame", CmdEmotion, "secondary_emotions", "Shame"},
		{"  /enhance Secondary Loneliness ", CmdEmotion, "secondary_emotions", "Loneliness"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if cmd.Kind != tt.kind || cmd.Group != tt.group || cmd.Value != tt.value {
				t.Errorf("got %+v", cmd)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"/", "/lang", "/lang a b", "/emotion primary"} {
		if _, err := ParseCommand(line); !errors.Is(err, errUsage) {
			t.Errorf("%q: err = %v, want usage", line, err)
		}
	}
	if _, err := ParseCommand("/dance"); err == nil {
		t.Error("unknown command accepted")
	}
}
