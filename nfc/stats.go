package nfc

import (
	"github.com/rcrowley/go-metrics"
)

// Stats accumulates transfer counters for one client.
type Stats struct {
	BytesSent     metrics.Meter
	BytesReceived metrics.Meter
	FilesSent     metrics.Counter
	FilesReceived metrics.Counter
	Failures      metrics.Counter
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	BytesSent     int64
	BytesReceived int64
	FilesSent     int64
	FilesReceived int64
	Failures      int64
	SendRate      float64
	ReceiveRate   float64
}

func newStats(r metrics.Registry) *Stats {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Stats{
		BytesSent:     metrics.GetOrRegisterMeter("nfc.bytes.sent", r),
		BytesReceived: metrics.GetOrRegisterMeter("nfc.bytes.received", r),
		FilesSent:     metrics.GetOrRegisterCounter("nfc.files.sent", r),
		FilesReceived: metrics.GetOrRegisterCounter("nfc.files.received", r),
		Failures:      metrics.GetOrRegisterCounter("nfc.failures", r),
	}
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	sent := s.BytesSent.Snapshot()
	received := s.BytesReceived.Snapshot()
	return StatsSnapshot{
		BytesSent:     sent.Count(),
		BytesReceived: received.Count(),
		FilesSent:     s.FilesSent.Count(),
		FilesReceived: s.FilesReceived.Count(),
		Failures:      s.Failures.Count(),
		SendRate:      sent.RateMean(),
		ReceiveRate:   received.RateMean(),
	}
}
