package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncRateLimited(string)                         {}
func (n *NoopRecorder) IncInsufficientCredits(string)                 {}
func (n *NoopRecorder) AddCreditsDebited(int)                         {}
func (n *NoopRecorder) IncConversion(string)                          {}
func (n *NoopRecorder) IncUpstreamCall(string, string)                {}
func (n *NoopRecorder) ObserveUpstreamDuration(string, time.Duration) {}
func (n *NoopRecorder) IncCurrencyCacheHit()                          {}
func (n *NoopRecorder) IncCurrencyCacheMiss()                         {}
