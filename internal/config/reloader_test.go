package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReloaderReload(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.jsonc")
	envPath := filepath.Join(dir, ".env")

	writeFile(t, cfgPath, `{"gateway": {"port": 1111}}`)
	initial, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReloader(cfgPath, envPath, initial)

	var notified Change
	r.OnReload(func(c Change) { notified = c })

	writeFile(t, cfgPath, `{"gateway": {"port": 2222}, "models": {"providers": {"g": {"driver": "gemini", "auth": {"api_key": "${{ .Env.NW_RELOAD_KEY }}"}}}}}`)
	writeFile(t, envPath, "NW_RELOAD_KEY=fresh\n")
	t.Setenv("NW_RELOAD_KEY", "stale")

	change, err := r.Reload()
	if err != nil {
		t.Fatal(err)
	}

	if r.Current().Gateway.Port != 2222 {
		t.Errorf("expected port 2222, got %d", r.Current().Gateway.Port)
	}
	if notified.New != r.Current() || notified.Old != initial {
		t.Error("listener not notified with old and new config")
	}
	if got := r.Current().Models.Providers["g"].Auth.APIKey; got != "fresh" {
		t.Errorf("expected reloaded key %q, got %q", "fresh", got)
	}
	if !change.ModelsChanged {
		t.Error("models change not detected")
	}
	if len(change.RestartRequired) != 1 || change.RestartRequired[0] != "gateway" {
		t.Errorf("restart required = %v", change.RestartRequired)
	}
}

func TestReloaderUnchanged(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.jsonc")
	writeFile(t, cfgPath, `{"assistant": {"error_message": "oops"}}`)

	initial, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReloader(cfgPath, filepath.Join(dir, ".env"), initial)

	change, err := r.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if change.ModelsChanged || change.PredictionChanged || len(change.RestartRequired) > 0 {
		t.Errorf("unexpected change: %+v", change)
	}
}

func TestReloaderKeepsConfigOnError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.jsonc")

	initial := Default()
	r := NewReloader(cfgPath, filepath.Join(dir, ".env"), initial)
	called := false
	r.OnReload(func(Change) { called = true })

	writeFile(t, cfgPath, `{ broken`)
	if _, err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if r.Current() != initial {
		t.Error("config replaced despite reload error")
	}
	if called {
		t.Error("listener ran after failed reload")
	}
}

func TestReloaderWatch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.jsonc")
	writeFile(t, cfgPath, `{"gateway": {"port": 3333}}`)

	r := NewReloader(cfgPath, filepath.Join(dir, ".env"), Default())
	done := make(chan Change, 1)
	r.OnReload(func(c Change) { done <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trigger := make(chan struct{}, 1)
	go r.Watch(ctx, trigger)

	trigger <- struct{}{}
	select {
	case c := <-done:
		if c.New.Gateway.Port != 3333 {
			t.Errorf("port = %d", c.New.Gateway.Port)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not reload")
	}
}
