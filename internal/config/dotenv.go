package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotenv sets the variables of a .env file that the environment does not
// already define. A missing file is not an error.
func LoadDotenv(path string) error {
	return applyDotenv(path, false)
}

// ReloadDotenv applies a .env file over the current environment.
func ReloadDotenv(path string) error {
	return applyDotenv(path, true)
}

// ParseDotenvLine splits a KEY=VALUE line. Comments, blank lines and lines
// without "=" report ok=false. An "export " prefix and matching quotes
// around the value are stripped.
func ParseDotenvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	key, value, ok = strings.Cut(strings.TrimPrefix(line, "export "), "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), unquote(strings.TrimSpace(value)), true
}

func applyDotenv(path string, override bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := ParseDotenvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(key); set && !override {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '"' || s[0] == '\'') && s[n-1] == s[0] {
		return s[1 : n-1]
	}
	return s
}
