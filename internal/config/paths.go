package config

import (
	"os"
	"path/filepath"
)

// HomePath returns the root directory for netwatch data.
// It uses $NETWATCH_PATH if set, otherwise defaults to ~/.netwatch.
func HomePath() string {
	if v := os.Getenv("NETWATCH_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".netwatch")
	}
	return filepath.Join(home, ".netwatch")
}

// ConfigPath returns the path to the netwatch config file.
func ConfigPath() string {
	return filepath.Join(HomePath(), "config.jsonc")
}

// DotenvPath returns the path to the netwatch .env file.
func DotenvPath() string {
	return filepath.Join(HomePath(), ".env")
}

// HeartbeatPath returns the path of the gateway heartbeat file.
func HeartbeatPath() string {
	return filepath.Join(HomePath(), "gateway.heartbeat")
}
