package admission

import (
	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/ratelimit"
)

// KeyStrategy selects the identity a quota is counted against.
type KeyStrategy int

const (
	// KeyAPIKey counts per API key; requests without a key share one bucket.
	KeyAPIKey KeyStrategy = iota
	// KeyRemoteAddr counts per client address.
	KeyRemoteAddr
)

// anonymousBucket is shared by every request that sends no API key.
const anonymousBucket = "none"

// Policy is a named quota applied to a route.
type Policy struct {
	Name string
	Rate ratelimit.Rate
	Key  KeyStrategy
	// PlanDriven takes the limit from the caller's plan (requests per
	// minute) instead of Rate. Unresolved callers get the anonymous rate.
	PlanDriven bool
}

// RateSubject identifies who a request is counted against.
type RateSubject struct {
	APIKey     string
	RemoteAddr string
	Caller     *model.User
}

// bucketKey never contains a raw API key or address.
func (p Policy) bucketKey(s RateSubject) string {
	switch p.Key {
	case KeyRemoteAddr:
		return p.Name + ":ip:" + auth.QuickHash(s.RemoteAddr)
	default:
		if s.APIKey == "" {
			return p.Name + ":key:" + anonymousBucket
		}
		return p.Name + ":key:" + auth.QuickHash(s.APIKey)
	}
}
