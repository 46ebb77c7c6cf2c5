package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/fxgate/fxgate/internal/upstream"
)

// HistoryCall records the arguments of a HistoricalRates call.
type HistoryCall struct {
	From, To   string
	Start, End time.Time
}

// StubProvider is a scripted rate provider that counts calls.
type StubProvider struct {
	mu sync.Mutex

	Currencies    map[string]string
	CurrenciesErr error
	Rate          float64
	RateErr       error
	History       map[string]map[string]float64
	HistoryErr    error

	currenciesCalls int
	latestCalls     int
	historyCalls    []HistoryCall
}

// ListCurrencies returns Currencies or CurrenciesErr.
func (p *StubProvider) ListCurrencies(context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currenciesCalls++
	if p.CurrenciesErr != nil {
		return nil, p.CurrenciesErr
	}
	out := make(map[string]string, len(p.Currencies))
	for k, v := range p.Currencies {
		out[k] = v
	}
	return out, nil
}

// LatestRate returns Rate or RateErr.
func (p *StubProvider) LatestRate(context.Context, string, string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latestCalls++
	if p.RateErr != nil {
		return 0, p.RateErr
	}
	return p.Rate, nil
}

// HistoricalRates returns History (empty when nil) or HistoryErr.
func (p *StubProvider) HistoricalRates(_ context.Context, from, to string, start, end time.Time) (map[string]map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyCalls = append(p.historyCalls, HistoryCall{From: from, To: to, Start: start, End: end})
	if p.HistoryErr != nil {
		return nil, p.HistoryErr
	}
	out := make(map[string]map[string]float64, len(p.History))
	for date, rates := range p.History {
		out[date] = rates
	}
	return out, nil
}

// CurrenciesCalls returns how many times ListCurrencies ran.
func (p *StubProvider) CurrenciesCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currenciesCalls
}

// LatestCalls returns how many times LatestRate ran.
func (p *StubProvider) LatestCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latestCalls
}

// HistoryCalls returns the recorded HistoricalRates calls.
func (p *StubProvider) HistoryCalls() []HistoryCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]HistoryCall, len(p.historyCalls))
	copy(out, p.historyCalls)
	return out
}

// TotalCalls sums every provider call.
func (p *StubProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currenciesCalls + p.latestCalls + len(p.historyCalls)
}

// RetryableError returns a transport-style provider failure.
func RetryableError(op string) error {
	return &upstream.Error{Op: op, Detail: "request timed out", Retryable: true}
}
