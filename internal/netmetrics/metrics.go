// Package netmetrics simulates a live network metrics feed.
package netmetrics

import "time"

// Status classifies a metric for display.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Fixed latency reference values reported alongside the live reading.
const (
	LatencyAverage = 45.0
	LatencyMin     = 20.0
	LatencyMax     = 150.0
)

// Thresholds above which a reading is flagged.
const (
	LatencyWarnThreshold     = 100.0
	PacketLossErrorThreshold = 1.0
)

// BandwidthPoint is one bandwidth sample in Mbps.
type BandwidthPoint struct {
	Time     string  `json:"time"`
	Upload   float64 `json:"upload"`
	Download float64 `json:"download"`
}

// Point is one scalar sample.
type Point struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Bandwidth holds the current bandwidth reading and its history.
type Bandwidth struct {
	Upload   float64          `json:"upload"`
	Download float64          `json:"download"`
	History  []BandwidthPoint `json:"history"`
}

// Latency holds the current latency reading in ms and its history.
type Latency struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	History []Point `json:"history"`
}

// PacketLoss holds the current packet loss percentage and its history.
type PacketLoss struct {
	Current float64 `json:"current"`
	History []Point `json:"history"`
}

// Snapshot is the full metrics state.
type Snapshot struct {
	Bandwidth  Bandwidth  `json:"bandwidth"`
	Latency    Latency    `json:"latency"`
	PacketLoss PacketLoss `json:"packet_loss"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LatencyStatus classifies the current latency.
func (s Snapshot) LatencyStatus() Status {
	if s.Latency.Current > LatencyWarnThreshold {
		return StatusWarning
	}
	return StatusSuccess
}

// PacketLossStatus classifies the current packet loss.
func (s Snapshot) PacketLossStatus() Status {
	if s.PacketLoss.Current > PacketLossErrorThreshold {
		return StatusError
	}
	return StatusSuccess
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Bandwidth.History = append([]BandwidthPoint(nil), s.Bandwidth.History...)
	out.Latency.History = append([]Point(nil), s.Latency.History...)
	out.PacketLoss.History = append([]Point(nil), s.PacketLoss.History...)
	return out
}
