package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Change describes what a reload touched. Listeners use it to skip work
// for sections that did not move.
type Change struct {
	Old, New *Config

	ModelsChanged     bool
	PredictionChanged bool
	// RestartRequired lists sections that only take effect on restart.
	RestartRequired []string
}

func diff(old, cur *Config) Change {
	c := Change{
		Old:               old,
		New:               cur,
		ModelsChanged:     !reflect.DeepEqual(old.Models, cur.Models),
		PredictionChanged: !reflect.DeepEqual(old.Prediction, cur.Prediction),
	}
	if old.Gateway != cur.Gateway {
		c.RestartRequired = append(c.RestartRequired, "gateway")
	}
	if old.Assistant != cur.Assistant {
		c.RestartRequired = append(c.RestartRequired, "assistant")
	}
	if old.Storage != cur.Storage {
		c.RestartRequired = append(c.RestartRequired, "storage")
	}
	if old.Metrics != cur.Metrics {
		c.RestartRequired = append(c.RestartRequired, "metrics")
	}
	return c
}

// Reloader swaps the live config on demand and tells listeners what changed.
type Reloader struct {
	configPath string
	dotenvPath string
	current    atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(Change)
}

// NewReloader creates a Reloader holding initial.
func NewReloader(configPath, dotenvPath string, initial *Config) *Reloader {
	r := &Reloader{configPath: configPath, dotenvPath: dotenvPath}
	r.current.Store(initial)
	return r
}

// Current returns the live config.
func (r *Reloader) Current() *Config {
	return r.current.Load()
}

// OnReload registers fn to run after each successful reload.
func (r *Reloader) OnReload(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Reload re-reads the dotenv file then the config. On error the previous
// config stays live and no listener runs.
func (r *Reloader) Reload() (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ReloadDotenv(r.dotenvPath); err != nil {
		return Change{}, fmt.Errorf("reload dotenv: %w", err)
	}
	cfg, err := Load(r.configPath)
	if err != nil {
		return Change{}, fmt.Errorf("reload config: %w", err)
	}

	change := diff(r.current.Swap(cfg), cfg)
	slog.Info("config reloaded",
		"path", r.configPath,
		"models", change.ModelsChanged,
		"restart_required", change.RestartRequired,
	)
	for _, fn := range r.listeners {
		fn(change)
	}
	return change, nil
}

// Watch reloads each time trigger fires until ctx ends. Failures are logged.
func (r *Reloader) Watch(ctx context.Context, trigger <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			if _, err := r.Reload(); err != nil {
				slog.Error("config reload failed", "path", r.configPath, "error", err)
			}
		}
	}
}
