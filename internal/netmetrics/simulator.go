package netmetrics

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dohr-michael/netwatch/internal/events"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultHistory  = 50
)

// Config configures a Simulator.
type Config struct {
	Interval time.Duration
	History  int
	Bus      *events.Bus // optional
	Rand     *rand.Rand  // optional, for deterministic tests
	Now      func() time.Time
}

// Simulator produces random metrics samples on a fixed interval.
type Simulator struct {
	interval time.Duration
	history  int
	bus      *events.Bus
	now      func() time.Time

	mu   sync.RWMutex
	rng  *rand.Rand
	snap Snapshot
}

// NewSimulator creates a simulator with an empty history.
func NewSimulator(cfg Config) *Simulator {
	s := &Simulator{
		interval: cfg.Interval,
		history:  cfg.History,
		bus:      cfg.Bus,
		rng:      cfg.Rand,
		now:      cfg.Now,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.history <= 0 {
		s.history = DefaultHistory
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.snap.Latency = Latency{Average: LatencyAverage, Min: LatencyMin, Max: LatencyMax}
	return s
}

// Run samples until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Debug("metrics simulator started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample takes one reading, appends it to the history and returns the new state.
func (s *Simulator) Sample() Snapshot {
	s.mu.Lock()
	now := s.now()
	ts := now.UTC().Format(time.RFC3339)

	up := s.rng.Float64() * 100
	down := s.rng.Float64() * 200
	lat := s.rng.Float64() * 100
	loss := s.rng.Float64() * 2

	s.snap.Bandwidth.Upload = up
	s.snap.Bandwidth.Download = down
	s.snap.Bandwidth.History = appendCapped(s.snap.Bandwidth.History, BandwidthPoint{Time: ts, Upload: up, Download: down}, s.history)
	s.snap.Latency.Current = lat
	s.snap.Latency.History = appendCapped(s.snap.Latency.History, Point{Time: ts, Value: lat}, s.history)
	s.snap.PacketLoss.Current = loss
	s.snap.PacketLoss.History = appendCapped(s.snap.PacketLoss.History, Point{Time: ts, Value: loss}, s.history)
	s.snap.UpdatedAt = now

	out := s.snap.clone()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.NewTypedEvent(events.SourceMetrics, events.MetricsSamplePayload{
			Time:             now,
			Upload:           up,
			Download:         down,
			Latency:          lat,
			PacketLoss:       loss,
			LatencyStatus:    string(out.LatencyStatus()),
			PacketLossStatus: string(out.PacketLossStatus()),
		}))
	}
	return out
}

// Current returns a copy of the latest state.
func (s *Simulator) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

func appendCapped[T any](xs []T, x T, limit int) []T {
	xs = append(xs, x)
	if len(xs) > limit {
		xs = append(xs[:0:0], xs[len(xs)-limit:]...)
	}
	return xs
}
