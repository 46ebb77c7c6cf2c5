package admission

import (
	"fmt"
	"time"
)

// RateLimitedError reports which quota rejected a request and when it resets.
type RateLimitedError struct {
	Policy     string
	Limit      int
	Window     time.Duration
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %d per %s", e.Limit, windowText(e.Window))
}

// InsufficientCreditsError reports a balance below the operation cost.
// AtCommit is set when the pre-check passed but a concurrent debit drained
// the balance before this one committed.
type InsufficientCreditsError struct {
	Required  int
	Available int
	AtCommit  bool
}

func (e *InsufficientCreditsError) Error() string {
	if e.AtCommit {
		return fmt.Sprintf("Not enough credits to complete the request. Required: %d", e.Required)
	}
	return fmt.Sprintf("Not enough credits. Required: %d, Available: %d", e.Required, e.Available)
}

func windowText(d time.Duration) string {
	switch d {
	case time.Second:
		return "1 second"
	case time.Minute:
		return "1 minute"
	case time.Hour:
		return "1 hour"
	case 24 * time.Hour:
		return "1 day"
	}
	return d.String()
}
