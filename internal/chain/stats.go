package chain

import (
	"sync"

	"github.com/fileflow/fileflow/internal/metrics"
)

// Stats accumulates cumulative processing counters across the process
// lifetime. Counters only grow; Reset zeroes them atomically with respect to
// concurrent increments.
type Stats struct {
	mu             sync.Mutex
	filesProcessed uint64
	processorsRun  uint64
	succeeded      uint64
	failed         uint64
	timedOut       uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	FilesProcessed uint64 `json:"files_processed"`
	ProcessorsRun  uint64 `json:"processors_run"`
	Succeeded      uint64 `json:"successful_processors"`
	Failed         uint64 `json:"failed_processors"`
	TimedOut       uint64 `json:"timeouts"`
}

// NewStats creates a fresh counter set. Callers share one instance per
// executor; tests inject their own.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordFile() {
	s.mu.Lock()
	s.filesProcessed++
	s.mu.Unlock()
	metrics.FilesProcessed.Inc()
}

func (s *Stats) recordSuccess(name string) {
	s.mu.Lock()
	s.processorsRun++
	s.succeeded++
	s.mu.Unlock()
	metrics.ProcessorRuns.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
}

func (s *Stats) recordFailure(name string) {
	s.mu.Lock()
	s.processorsRun++
	s.failed++
	s.mu.Unlock()
	metrics.ProcessorRuns.WithLabelValues(name, metrics.OutcomeFailure).Inc()
}

func (s *Stats) recordTimeout(name string) {
	s.mu.Lock()
	s.processorsRun++
	s.failed++
	s.timedOut++
	s.mu.Unlock()
	metrics.ProcessorRuns.WithLabelValues(name, metrics.OutcomeTimeout).Inc()
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		FilesProcessed: s.filesProcessed,
		ProcessorsRun:  s.processorsRun,
		Succeeded:      s.succeeded,
		Failed:         s.failed,
		TimedOut:       s.timedOut,
	}
}

// Reset zeroes all counters. No reader observes a partially-reset set.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesProcessed = 0
	s.processorsRun = 0
	s.succeeded = 0
	s.failed = 0
	s.timedOut = 0
}
