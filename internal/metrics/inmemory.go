package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Duration aggregates observations.
type Duration struct {
	Count   uint64
	TotalNs int64
}

// Snapshot captures current in-memory counters.
// Map keys are label values; UpstreamCalls is keyed by "op|outcome".
type Snapshot struct {
	RateLimited         map[string]uint64
	InsufficientCredits map[string]uint64
	CreditsDebited      uint64
	Conversions         map[string]uint64
	UpstreamCalls       map[string]uint64
	UpstreamDurations   map[string]Duration
	CurrencyCacheHits   uint64
	CurrencyCacheMisses uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	creditsDebited      uint64
	currencyCacheHits   uint64
	currencyCacheMisses uint64

	mu                  sync.Mutex
	rateLimited         map[string]uint64
	insufficientCredits map[string]uint64
	conversions         map[string]uint64
	upstreamCalls       map[string]uint64
	upstreamDurations   map[string]Duration
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		rateLimited:         make(map[string]uint64),
		insufficientCredits: make(map[string]uint64),
		conversions:         make(map[string]uint64),
		upstreamCalls:       make(map[string]uint64),
		upstreamDurations:   make(map[string]Duration),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		RateLimited:         copyCounts(m.rateLimited),
		InsufficientCredits: copyCounts(m.insufficientCredits),
		CreditsDebited:      atomic.LoadUint64(&m.creditsDebited),
		Conversions:         copyCounts(m.conversions),
		UpstreamCalls:       copyCounts(m.upstreamCalls),
		UpstreamDurations:   copyDurations(m.upstreamDurations),
		CurrencyCacheHits:   atomic.LoadUint64(&m.currencyCacheHits),
		CurrencyCacheMisses: atomic.LoadUint64(&m.currencyCacheMisses),
	}
}

// IncRateLimited counts a rejection by policy.
func (m *InMemoryRecorder) IncRateLimited(policy string) {
	m.inc(m.rateLimited, policy)
}

// IncInsufficientCredits counts a credit rejection by stage.
func (m *InMemoryRecorder) IncInsufficientCredits(stage string) {
	m.inc(m.insufficientCredits, stage)
}

// AddCreditsDebited adds committed credits.
func (m *InMemoryRecorder) AddCreditsDebited(credits int) {
	if credits > 0 {
		atomic.AddUint64(&m.creditsDebited, uint64(credits))
	}
}

// IncConversion counts a completed conversion.
func (m *InMemoryRecorder) IncConversion(kind string) {
	m.inc(m.conversions, kind)
}

// IncUpstreamCall counts a provider call by operation and outcome.
func (m *InMemoryRecorder) IncUpstreamCall(op, outcome string) {
	m.inc(m.upstreamCalls, op+"|"+outcome)
}

// ObserveUpstreamDuration records provider latency.
func (m *InMemoryRecorder) ObserveUpstreamDuration(op string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.upstreamDurations[op]
	d.Count++
	d.TotalNs += duration.Nanoseconds()
	m.upstreamDurations[op] = d
}

// IncCurrencyCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncCurrencyCacheHit() {
	atomic.AddUint64(&m.currencyCacheHits, 1)
}

// IncCurrencyCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncCurrencyCacheMiss() {
	atomic.AddUint64(&m.currencyCacheMisses, 1)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyDurations(src map[string]Duration) map[string]Duration {
	out := make(map[string]Duration, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
