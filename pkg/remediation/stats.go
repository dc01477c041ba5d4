package remediation

import (
	"sync/atomic"
	"time"
)

// Stats tracks remediation execution counters. All methods are safe for
// concurrent use.
type Stats struct {
	total      atomic.Uint64
	successful atomic.Uint64
	failed     atomic.Uint64
	replayed   atomic.Uint64

	// totalDurationMs accumulates execution time for the rolling average.
	totalDurationMs atomic.Uint64
}

// StatsSnapshot is a point-in-time view of the counters.
type StatsSnapshot struct {
	Total        uint64        `json:"total"`
	Successful   uint64        `json:"successful"`
	Failed       uint64        `json:"failed"`
	Replayed     uint64        `json:"replayed"`
	AvgExecution time.Duration `json:"avg_execution"`
}

// NewStats creates zeroed counters.
func NewStats() *Stats { return &Stats{} }

// RecordAttempt folds one attempt into the counters.
func (s *Stats) RecordAttempt(attempt Attempt) {
	s.total.Add(1)
	if attempt.Replayed {
		s.replayed.Add(1)
	}
	switch attempt.Outcome {
	case OutcomeSuccess:
		s.successful.Add(1)
	default:
		s.failed.Add(1)
	}
	if !attempt.Replayed {
		s.totalDurationMs.Add(uint64(attempt.EndedAt.Sub(attempt.StartedAt).Milliseconds()))
	}
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	total := s.total.Load()
	replayed := s.replayed.Load()
	snap := StatsSnapshot{
		Total:      total,
		Successful: s.successful.Load(),
		Failed:     s.failed.Load(),
		Replayed:   replayed,
	}
	if executed := total - replayed; executed > 0 {
		snap.AvgExecution = time.Duration(s.totalDurationMs.Load()/executed) * time.Millisecond
	}
	return snap
}
