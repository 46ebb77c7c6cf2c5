// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Plan is a subscription tier. RateLimit is requests per minute.
type Plan struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	RateLimit      int    `json:"rate_limit"`
	InitialCredits int    `json:"initial_credits"`
}

// DefaultPlans are seeded into an empty plan table.
var DefaultPlans = []Plan{
	{Name: "Free", RateLimit: 10, InitialCredits: 100},
	{Name: "Pro", RateLimit: 60, InitialCredits: 1000},
	{Name: "Diamond", RateLimit: 120, InitialCredits: 5000},
}

// ParsePlanSeeds parses "name:rate_limit:initial_credits" entries separated by commas.
// An empty string yields DefaultPlans.
func ParsePlanSeeds(s string) ([]Plan, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		out := make([]Plan, len(DefaultPlans))
		copy(out, DefaultPlans)
		return out, nil
	}

	var plans []Plan
	seen := make(map[string]bool)
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid plan seed %q: want name:rate_limit:initial_credits", entry)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("invalid plan seed %q: empty name", entry)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("duplicate plan seed %q", name)
		}
		rate, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid plan seed %q: rate_limit must be a positive integer", entry)
		}
		credits, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || credits < 0 {
			return nil, fmt.Errorf("invalid plan seed %q: initial_credits must be a non-negative integer", entry)
		}
		seen[strings.ToLower(name)] = true
		plans = append(plans, Plan{Name: name, RateLimit: rate, InitialCredits: credits})
	}
	return plans, nil
}
