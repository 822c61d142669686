package retriever

import (
	"sort"
	"sync"
	"time"
)

// Phase names a timed step of answering a question.
type Phase string

const (
	PhaseEmbed   Phase = "embed"
	PhaseSearch  Phase = "search"
	PhaseExtract Phase = "extract"
	PhaseTotal   Phase = "total"
)

var phases = []Phase{PhaseEmbed, PhaseSearch, PhaseExtract, PhaseTotal}

// timing holds the phase durations of one question. A phase that never ran
// stays negative.
type timing [4]time.Duration

func newTiming() timing { return timing{-1, -1, -1, -1} }

func (t *timing) set(p Phase, d time.Duration) {
	for i, q := range phases {
		if q == p {
			t[i] = d
			return
		}
	}
}

type sample struct {
	at     time.Time
	status Status
	ms     [4]int64
}

// LatencySnapshot aggregates the samples of one phase.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time view of recent questions.
type StatsSnapshot struct {
	Questions int                       `json:"questions"`
	Outcomes  map[Status]int            `json:"outcomes"`
	Phases    map[Phase]LatencySnapshot `json:"phases"`
}

// Stats keeps the outcome and phase latencies of questions answered within a
// rolling window. It is shared by all sessions.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Window returns the age after which samples are dropped.
func (s *Stats) Window() time.Duration { return s.maxAge }

func (s *Stats) record(status Status, t timing) {
	sm := sample{status: status}
	for i, d := range t {
		sm.ms[i] = -1
		if d >= 0 {
			sm.ms[i] = d.Milliseconds()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sm.at = s.now()
	s.pruneLocked(sm.at)
	s.samples = append(s.samples, sm)
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())

	snap := StatsSnapshot{
		Questions: len(s.samples),
		Outcomes:  make(map[Status]int),
		Phases:    make(map[Phase]LatencySnapshot, len(phases)),
	}
	values := make([][]int64, len(phases))
	for _, sm := range s.samples {
		snap.Outcomes[sm.status]++
		for i, ms := range sm.ms {
			if ms >= 0 {
				values[i] = append(values[i], ms)
			}
		}
	}
	for i, p := range phases {
		snap.Phases[p] = aggregate(values[i])
	}
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func aggregate(values []int64) LatencySnapshot {
	if len(values) == 0 {
		return LatencySnapshot{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	var sum int64
	for _, v := range values {
		sum += v
	}
	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
