package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dohr-michael/netwatch/internal/config"
)

// ErrMissingCredential is returned when no API key can be found for a driver
// that needs one. It surfaces at request time, never at startup.
var ErrMissingCredential = errors.New("missing credential")

// Decrypter turns a stored credential value into plaintext.
// *secrets.Resolver satisfies it.
type Decrypter interface {
	Resolve(value string) (string, error)
}

// driverEnv lists the environment variables consulted per driver, in order.
var driverEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
}

// ResolveAuth resolves the API key for a provider.
// Resolution order: direct api_key (or ${VAR}) → driver default env vars.
// Encrypted values are opened with dec; a nil dec leaves them untouched.
func ResolveAuth(cfg config.ProviderConfig, dec Decrypter) (string, error) {
	driver := strings.ToLower(cfg.Driver)

	key := expandRef(cfg.Auth.APIKey)
	if key == "" {
		for _, name := range driverEnv[driver] {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				key = v
				break
			}
		}
	}

	if key == "" {
		if driver == "ollama" {
			return "", nil
		}
		envs, ok := driverEnv[driver]
		if !ok {
			return "", fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
		}
		return "", fmt.Errorf("%w: %s not set", ErrMissingCredential, strings.Join(envs, " or "))
	}

	if dec != nil {
		plain, err := dec.Resolve(key)
		if err != nil {
			return "", fmt.Errorf("decrypt %s credential: %w", driver, err)
		}
		key = plain
	}
	return key, nil
}

func expandRef(v string) string {
	trimmed := strings.TrimSpace(v)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		return strings.TrimSpace(os.Getenv(trimmed[2 : len(trimmed)-1]))
	}
	return trimmed
}
