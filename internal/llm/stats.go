package llm

import (
	"slices"
	"sync"
	"time"
)

// callSample is one completed provider call.
type callSample struct {
	at        time.Time
	latencyMs int64
	failed    bool
}

// StatsSnapshot aggregates the calls seen inside the rolling window.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Failed int     `json:"failed"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// LLMStats keeps a rolling window of chat and embedding call latencies.
// One instance is shared by every provider client in the process.
type LLMStats struct {
	mu     sync.Mutex
	window time.Duration
	calls  []callSample
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{window: window, calls: make([]callSample, 0, 128)}
}

// Record adds a successful call.
func (s *LLMStats) Record(latencyMs int64) { s.add(latencyMs, false) }

// RecordFailure adds a call that returned an error.
func (s *LLMStats) RecordFailure(latencyMs int64) { s.add(latencyMs, true) }

func (s *LLMStats) add(latencyMs int64, failed bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.calls = append(s.calls, callSample{at: now, latencyMs: max(latencyMs, 0), failed: failed})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expire(time.Now())
	calls := slices.Clone(s.calls)
	s.mu.Unlock()

	if len(calls) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Count: len(calls)}
	lat := make([]int64, len(calls))
	var total int64
	for i, c := range calls {
		lat[i] = c.latencyMs
		total += c.latencyMs
		if c.failed {
			snap.Failed++
		}
	}
	slices.Sort(lat)

	snap.MinMs = lat[0]
	snap.MaxMs = lat[len(lat)-1]
	snap.AvgMs = float64(total) / float64(len(lat))
	snap.P50Ms = percentile(lat, 50)
	snap.P95Ms = percentile(lat, 95)
	snap.P99Ms = percentile(lat, 99)
	return snap
}

// expire drops samples older than the window. Callers hold mu.
func (s *LLMStats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.calls) && s.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.calls = append(s.calls[:0], s.calls[i:]...)
	}
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, p float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return float64(sorted[0])
	case p >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * p / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
