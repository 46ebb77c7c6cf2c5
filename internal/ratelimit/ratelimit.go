// Package ratelimit provides fixed-window request counting.
//
// Windows are aligned to wall-clock boundaries: a per-minute window starts at
// second zero of the minute and a per-day window at UTC midnight.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidLimit is returned when a limit or window is not positive.
var ErrInvalidLimit = errors.New("rate limit and window must be positive")

// Limiter counts requests per key within a fixed window and rejects once the
// count would exceed limit. Rejected requests are not counted.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// AllowAll counts one request against every quota, or against none of
	// them when any quota is spent. Results are in quota order; Allowed on
	// each reports whether that quota had room.
	AllowAll(ctx context.Context, quotas []Quota) ([]Result, error)
}

// Quota is one counter a request is charged against. Keys within a single
// AllowAll call must be distinct.
type Quota struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Admitted reports whether every result allowed the request.
func Admitted(results []Result) bool {
	for _, r := range results {
		if !r.Allowed {
			return false
		}
	}
	return true
}

// ValidateQuotas rejects any quota with a non-positive limit or window.
func ValidateQuotas(quotas []Quota) error {
	for _, q := range quotas {
		if q.Limit <= 0 || q.Window <= 0 {
			return ErrInvalidLimit
		}
	}
	return nil
}

// Result describes a single limiter decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the window resets, rounded up to
// whole seconds and never below one second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}

// WindowStart returns the start of the window containing t.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.UTC().Truncate(window)
}
