package secrets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dohr-michael/netwatch/internal/config"
)

// SetEntry writes or replaces KEY=VALUE in a .env file, keeping comments,
// blank lines and ordering. The file is written with 0o600 permissions.
func SetEntry(path, key, value string) error {
	lines, err := readLines(path)
	if err != nil {
		return fmt.Errorf("read dotenv: %w", err)
	}

	entry := key + "=" + quoteValue(value)

	replaced := false
	for i, line := range lines {
		if k, _, ok := config.ParseDotenvLine(line); ok && k == key {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create dotenv directory: %w", err)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

// readLines returns the file's lines, or nil when it does not exist.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// quoteValue double-quotes values containing whitespace or shell-significant characters.
func quoteValue(v string) string {
	if strings.ContainsAny(v, " \t'#$") {
		return `"` + v + `"`
	}
	return v
}
