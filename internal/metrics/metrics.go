// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Upstream call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeNoData  = "no_data"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Admission metrics
	IncRateLimited(policy string)
	IncInsufficientCredits(stage string) // stage: "precheck" or "commit"
	AddCreditsDebited(credits int)

	// Conversion metrics
	IncConversion(kind string) // kind: "latest" or "historical"

	// Upstream provider metrics
	IncUpstreamCall(op, outcome string)
	ObserveUpstreamDuration(op string, duration time.Duration)

	// Currency list cache
	IncCurrencyCacheHit()
	IncCurrencyCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
