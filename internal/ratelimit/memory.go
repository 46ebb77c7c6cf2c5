package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	start time.Time
	end   time.Time
	count int
}

// Memory is a process-local Limiter. Counters are not shared between
// instances, so limits only hold for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemory creates an empty in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	res, err := m.AllowAll(ctx, []Quota{{Key: key, Limit: limit, Window: window}})
	if err != nil {
		return Result{}, err
	}
	return res[0], nil
}

// AllowAll implements Limiter. The quotas are checked and counted under one
// lock, so no concurrent request can slip between the check and the count.
func (m *Memory) AllowAll(_ context.Context, quotas []Quota) ([]Result, error) {
	if err := ValidateQuotas(quotas); err != nil {
		return nil, err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	buckets := make([]*bucket, len(quotas))
	results := make([]Result, len(quotas))
	admitted := true
	for i, q := range quotas {
		start := WindowStart(now, q.Window)
		end := start.Add(q.Window)
		k := q.Key + "|" + q.Window.String()

		b, ok := m.buckets[k]
		if !ok || !b.start.Equal(start) {
			b = &bucket{start: start, end: end}
			m.buckets[k] = b
		}
		buckets[i] = b

		allowed := b.count < q.Limit
		admitted = admitted && allowed
		results[i] = Result{Allowed: allowed, Limit: q.Limit, Remaining: q.Limit - b.count, ResetAt: end}
	}

	if !admitted {
		for i := range results {
			if !results[i].Allowed {
				results[i].Remaining = 0
			}
		}
		return results, nil
	}

	for i, b := range buckets {
		b.count++
		results[i].Remaining--
	}
	return results, nil
}

// Sweep drops buckets whose window has ended and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, b := range m.buckets {
		if !now.Before(b.end) {
			delete(m.buckets, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Run sweeps expired buckets every interval until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
