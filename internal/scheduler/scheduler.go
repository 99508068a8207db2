// Package scheduler runs named periodic jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cron "github.com/netresearch/go-cron"
)

// Job is a unit of periodic work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Config holds dependencies for the scheduler.
type Config struct {
	Logger *slog.Logger
}

// Entry describes a registered job.
type Entry struct {
	Name    string
	Spec    string
	Next    time.Time
	LastRun time.Time
	Runs    int
}

type runtimeEntry struct {
	name    string
	expr    *CronExpr
	id      cron.EntryID
	lastRun time.Time
	runs    int
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// activation fires is skipped for that activation.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*runtimeEntry
	started bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		entries: make(map[string]*runtimeEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name. The schedule is validated here.
func (s *Scheduler) Add(name, spec string, job Job) error {
	expr, err := ParseCron(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}

	re := &runtimeEntry{name: name, expr: expr}
	id, err := s.cron.AddFunc(spec, func() { s.run(re, job) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	re.id = id
	s.entries[name] = re

	s.logger.Info("scheduler: added job", "name", name, "spec", spec)
	return nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	re, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job not found: %s", name)
	}
	delete(s.entries, name)
	s.mu.Unlock()

	s.cron.Remove(re.id)
	s.logger.Info("scheduler: removed job", "name", name)
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", n)
}

// Stop halts the scheduler, cancels running jobs and waits for them to return
// or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler: stop timed out")
	}
	s.logger.Info("scheduler stopped")
}

// Entries returns a snapshot of the registered jobs, sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result := make([]Entry, 0, len(s.entries))
	for _, re := range s.entries {
		result = append(result, Entry{
			Name:    re.name,
			Spec:    re.expr.String(),
			Next:    re.expr.Next(now),
			LastRun: re.lastRun,
			Runs:    re.runs,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (s *Scheduler) run(re *runtimeEntry, job Job) {
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	re.lastRun = time.Now()
	re.runs++
	s.mu.Unlock()

	s.logger.Debug("scheduler: running job", "name", re.name)
	job(s.ctx)
}
