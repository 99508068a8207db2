// Package secrets stores provider credentials age-encrypted in the netwatch .env file.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"

	"github.com/dohr-michael/netwatch/internal/config"
)

const (
	encPrefix = "ENC[age:"
	encSuffix = "]"
)

// ErrNotEncrypted is returned by Decrypt for plaintext input.
var ErrNotEncrypted = errors.New("not an encrypted value")

// KeyPath returns the default age key file path: $NETWATCH_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.HomePath(), ".age-key")
}

// GenerateIdentity creates an X25519 key pair at path with 0o600 permissions.
// An existing key file is left untouched.
func GenerateIdentity(path string) (*age.X25519Identity, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadIdentity(path)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age identity: %w", err)
	}

	content := fmt.Sprintf("# created by netwatch\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write age key: %w", err)
	}
	return identity, nil
}

// LoadIdentity reads the first X25519 identity from path.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", path)
	}

	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", path)
	}
	return id, nil
}

// Encrypt seals plaintext for recipient and returns an ENC[age:...] value.
func Encrypt(plaintext string, recipient *age.X25519Recipient) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("age encrypt init: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt close: %w", err)
	}

	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + encSuffix, nil
}

// Decrypt opens an ENC[age:...] value.
func Decrypt(value string, identity *age.X25519Identity) (string, error) {
	if !IsEncrypted(value) {
		return "", ErrNotEncrypted
	}

	encoded := value[len(encPrefix) : len(value)-len(encSuffix)]
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}

	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read decrypted: %w", err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether s is an ENC[age:...] value.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}

// Resolver decrypts credential values on demand, loading the key file the
// first time an encrypted value is seen.
type Resolver struct {
	keyPath string

	mu       sync.Mutex
	identity *age.X25519Identity
}

// NewResolver returns a Resolver reading its identity from keyPath.
func NewResolver(keyPath string) *Resolver {
	return &Resolver{keyPath: keyPath}
}

// Resolve returns plaintext values unchanged and decrypts encrypted ones.
func (r *Resolver) Resolve(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identity == nil {
		id, err := LoadIdentity(r.keyPath)
		if err != nil {
			return "", err
		}
		r.identity = id
	}
	return Decrypt(value, r.identity)
}
