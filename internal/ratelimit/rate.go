package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a request quota over a window.
type Rate struct {
	Limit  int
	Window time.Duration
}

// String renders the rate as "N/unit" when the window is a whole unit.
func (r Rate) String() string {
	switch r.Window {
	case time.Second:
		return fmt.Sprintf("%d/second", r.Limit)
	case time.Minute:
		return fmt.Sprintf("%d/minute", r.Limit)
	case time.Hour:
		return fmt.Sprintf("%d/hour", r.Limit)
	case 24 * time.Hour:
		return fmt.Sprintf("%d/day", r.Limit)
	}
	return fmt.Sprintf("%d/%s", r.Limit, r.Window)
}

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseRate parses quotas such as "5/minute", "1000 per day" or "10/m".
func ParseRate(s string) (Rate, error) {
	raw := strings.ToLower(strings.TrimSpace(s))

	var count, unit string
	switch {
	case strings.Contains(raw, "/"):
		count, unit, _ = strings.Cut(raw, "/")
	case strings.Contains(raw, " per "):
		count, unit, _ = strings.Cut(raw, " per ")
	default:
		return Rate{}, fmt.Errorf("invalid rate %q: want N/unit", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: count must be a positive integer", s)
	}

	window, ok := units[strings.TrimSpace(unit)]
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate %q: unknown unit %q", s, strings.TrimSpace(unit))
	}

	return Rate{Limit: n, Window: window}, nil
}

// MustParseRate is like ParseRate but panics on error.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}
