package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	cron "github.com/netresearch/go-cron"
)

// CronExpr wraps a parsed cron schedule.
type CronExpr struct {
	raw      string
	schedule cron.Schedule
}

// ParseCron parses a standard 5-field cron expression or a descriptor
// such as "@hourly" or "@every 60s".
func ParseCron(expr string) (*CronExpr, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronExpr{raw: expr, schedule: schedule}, nil
}

// Next returns the next activation time after t.
func (c *CronExpr) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// String returns the raw cron expression.
func (c *CronExpr) String() string {
	return c.raw
}

// cronLogger routes cron runtime messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("scheduler: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
