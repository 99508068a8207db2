package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dohr-michael/netwatch/internal/events"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS llm_calls (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	model        TEXT NOT NULL DEFAULT '',
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	output_chars INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_created_at ON llm_calls(created_at);
`

// UsageRecord is one model call.
type UsageRecord struct {
	EventID     string
	CreatedAt   time.Time
	Kind        string
	Model       string
	Duration    time.Duration
	OutputChars int
	Error       string
}

// UsageSummary aggregates calls per kind and model.
type UsageSummary struct {
	Kind        string        `json:"kind"`
	Model       string        `json:"model"`
	Calls       int           `json:"calls"`
	Failures    int           `json:"failures"`
	OutputChars int           `json:"output_chars"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// UsageLedger records internal.llm.call events in sqlite.
type UsageLedger struct {
	db          *sql.DB
	unsubscribe func()
}

// OpenUsageLedger opens (creating if needed) the ledger database at path.
func OpenUsageLedger(path string) (*UsageLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init usage schema: %w", err)
	}
	return &UsageLedger{db: db}, nil
}

// Attach records every internal.llm.call event published on bus.
func (l *UsageLedger) Attach(bus *events.Bus) {
	l.unsubscribe = bus.Subscribe(l.handleEvent, events.EventLLMCall)
}

// Close detaches from the bus and closes the database.
func (l *UsageLedger) Close() error {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	return l.db.Close()
}

func (l *UsageLedger) handleEvent(e events.Event) {
	p, ok := events.GetLLMCallPayload(e)
	if !ok {
		return
	}
	err := l.Record(context.Background(), UsageRecord{
		EventID:     e.ID,
		CreatedAt:   e.Timestamp,
		Kind:        string(p.Kind),
		Model:       p.Provider,
		Duration:    p.Duration,
		OutputChars: p.OutputChars,
		Error:       p.Error,
	})
	if err != nil {
		slog.Error("usage ledger: record", "event_id", e.ID, "error", err)
	}
}

// Record inserts one call.
func (l *UsageLedger) Record(ctx context.Context, r UsageRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO llm_calls (event_id, created_at, kind, model, duration_ms, output_chars, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.EventID, r.CreatedAt.UnixMilli(), r.Kind, r.Model, r.Duration.Milliseconds(), r.OutputChars, r.Error)
	return err
}

// Summary aggregates calls made at or after since, grouped by kind and model.
func (l *UsageLedger) Summary(ctx context.Context, since time.Time) ([]UsageSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT kind, model, COUNT(*),
		       SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
		       SUM(output_chars), AVG(duration_ms)
		FROM llm_calls
		WHERE created_at >= ?
		GROUP BY kind, model
		ORDER BY kind, model`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var s UsageSummary
		var avgMs float64
		if err := rows.Scan(&s.Kind, &s.Model, &s.Calls, &s.Failures, &s.OutputChars, &avgMs); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		s.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))
		out = append(out, s)
	}
	return out, rows.Err()
}
