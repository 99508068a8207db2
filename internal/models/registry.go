package models

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/netwatch/internal/config"
)

// CreateFunc builds a model for a provider config.
type CreateFunc func(ctx context.Context, cfg config.ProviderConfig, dec Decrypter) (model.BaseChatModel, error)

// providerEntry holds a lazily-initialized model instance.
// Failed initializations are not cached so a credential fixed later takes effect.
type providerEntry struct {
	cfg   config.ProviderConfig
	mu    sync.Mutex
	model model.BaseChatModel
}

// Registry manages named model providers with lazy initialization.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]*providerEntry
	defaultName string
	dec         Decrypter
	create      CreateFunc
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithDecrypter sets the decrypter used for ENC[age:...] credentials.
func WithDecrypter(dec Decrypter) RegistryOption {
	return func(r *Registry) { r.dec = dec }
}

// WithCreateFunc replaces the model constructor (tests).
func WithCreateFunc(fn CreateFunc) RegistryOption {
	return func(r *Registry) { r.create = fn }
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig, opts ...RegistryOption) *Registry {
	r := &Registry{create: CreateModel}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset(cfg)
	return r
}

// Reset replaces the provider set and drops every cached model.
func (r *Registry) Reset(cfg config.ModelsConfig) {
	providers := make(map[string]*providerEntry, len(cfg.Providers))
	for name, provCfg := range cfg.Providers {
		providers[name] = &providerEntry{cfg: provCfg}
	}

	r.mu.Lock()
	r.providers = providers
	r.defaultName = cfg.Default
	r.mu.Unlock()
}

// Get returns the named model, initializing it lazily. An empty name selects
// the default provider.
func (r *Registry) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	r.mu.RLock()
	if name == "" {
		name = r.defaultName
	}
	entry, ok := r.providers[name]
	create, dec := r.create, r.dec
	r.mu.RUnlock()

	if name == "" {
		return nil, fmt.Errorf("no default model configured")
	}
	if !ok {
		return nil, fmt.Errorf("model provider %q not found", name)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.model != nil {
		return entry.model, nil
	}

	m, err := create(ctx, entry.cfg, dec)
	if err != nil {
		return nil, err
	}
	entry.model = m
	return m, nil
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Driver returns the driver of the named provider, "" if unknown.
func (r *Registry) Driver(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	if entry, ok := r.providers[name]; ok {
		return entry.cfg.Driver
	}
	return ""
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
