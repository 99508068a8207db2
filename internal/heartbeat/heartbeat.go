// Package heartbeat lets CLI commands find a running gateway and tell
// whether it is still alive.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultInterval is how often the gateway rewrites its beat.
const DefaultInterval = 30 * time.Second

// Status is the liveness verdict for a beat file.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// State is the live gateway state copied into each beat.
type State struct {
	Turns   int  `json:"turns"`
	Pending bool `json:"pending"`
	Clients int  `json:"clients"`
}

// Beat is the content of the heartbeat file.
type Beat struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr,omitempty"`
	Model     string    `json:"model,omitempty"`
	StartedAt time.Time `json:"started_at"`
	WrittenAt time.Time `json:"written_at"`
	State
}

// Uptime is the gateway uptime at the time of the beat.
func (b Beat) Uptime() time.Duration {
	return b.WrittenAt.Sub(b.StartedAt).Truncate(time.Second)
}

// Writer keeps the heartbeat file fresh while the gateway runs.
type Writer struct {
	Path     string
	Addr     string
	Model    string
	Interval time.Duration
	// State is sampled on every write. Optional.
	State func() State
}

// Run writes a beat immediately, then every Interval, until ctx ends. The
// file is removed on return.
func (w *Writer) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	started := time.Now()
	defer os.Remove(w.Path)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := w.write(started); err != nil {
			slog.Warn("heartbeat write failed", "path", w.Path, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Writer) write(started time.Time) error {
	b := Beat{
		PID:       os.Getpid(),
		Addr:      w.Addr,
		Model:     w.Model,
		StartedAt: started,
		WrittenAt: time.Now(),
	}
	if w.State != nil {
		b.State = w.State()
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	tmp := w.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.Path)
}

// Report is the result of Check.
type Report struct {
	Status Status
	Beat   *Beat // nil when dead
	Age    time.Duration
}

// Check reads the beat at path. A missing file means the gateway is not
// running; a beat older than maxAge is stale.
func Check(path string, maxAge time.Duration) (Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Report{Status: StatusDead}, nil
	}
	if err != nil {
		return Report{Status: StatusDead}, fmt.Errorf("read heartbeat: %w", err)
	}

	var b Beat
	if err := json.Unmarshal(data, &b); err != nil {
		return Report{Status: StatusDead}, fmt.Errorf("decode heartbeat: %w", err)
	}
	r := Report{Status: StatusAlive, Beat: &b, Age: time.Since(b.WrittenAt)}
	if r.Age > maxAge {
		r.Status = StatusStale
	}
	return r, nil
}

// Probe asks the gateway at b.Addr for its health endpoint.
func Probe(ctx context.Context, client *http.Client, b *Beat) error {
	if b == nil || b.Addr == "" {
		return errors.New("heartbeat has no address")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+b.Addr+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: %s", resp.Status)
	}
	return nil
}
