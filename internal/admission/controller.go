// Package admission gates billable work: a rate check first, then a credit
// pre-check, and after the upstream call an atomic debit committed together
// with the audit log row.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/metrics"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/ratelimit"
	"github.com/fxgate/fxgate/internal/repository"
)

// Operation names a billable call.
type Operation string

// Billable operations.
const (
	OpConvert    Operation = "convert"
	OpHistorical Operation = "historical"
)

// CostTable maps operations to their credit cost. Missing operations are free.
type CostTable map[Operation]int

// Store performs the conditional debit and log insert as one unit.
type Store interface {
	ChargeCredits(ctx context.Context, userID string, cost int, log *model.RequestLog) (int, error)
}

// Options configures a Controller.
type Options struct {
	Limiter   ratelimit.Limiter
	Store     Store
	Costs     CostTable
	Anonymous ratelimit.Rate
	Recorder  metrics.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Controller enforces rate limits and credit metering.
type Controller struct {
	limiter   ratelimit.Limiter
	store     Store
	costs     CostTable
	anonymous ratelimit.Rate
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewController creates a Controller.
func NewController(opts Options) *Controller {
	c := &Controller{
		limiter:   opts.Limiter,
		store:     opts.Store,
		costs:     opts.Costs,
		anonymous: opts.Anonymous,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.costs == nil {
		c.costs = CostTable{}
	}
	if c.anonymous.Limit <= 0 {
		c.anonymous = ratelimit.Rate{Limit: 10, Window: time.Minute}
	}
	if c.recorder == nil {
		c.recorder = metrics.NewNoop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "admission")
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Cost returns the credit cost of op.
func (c *Controller) Cost(op Operation) int {
	return c.costs[op]
}

// EffectiveRate returns the quota p applies to s.
func (c *Controller) EffectiveRate(p Policy, s RateSubject) ratelimit.Rate {
	if !p.PlanDriven {
		return p.Rate
	}
	if s.Caller != nil && s.Caller.RateLimit() > 0 {
		return ratelimit.Rate{Limit: s.Caller.RateLimit(), Window: time.Minute}
	}
	return c.anonymous
}

// CheckRate counts the request against p. A rejection returns
// *RateLimitedError and must stop the request before any billable work.
func (c *Controller) CheckRate(ctx context.Context, p Policy, s RateSubject) (ratelimit.Result, error) {
	return c.CheckRates(ctx, []Policy{p}, s)
}

// CheckRates counts the request against every policy, or against none when
// any of them is spent. The returned Result is the tightest quota: the
// rejecting one on failure, otherwise the one with the fewest requests left.
func (c *Controller) CheckRates(ctx context.Context, policies []Policy, s RateSubject) (ratelimit.Result, error) {
	quotas := make([]ratelimit.Quota, len(policies))
	for i, p := range policies {
		rate := c.EffectiveRate(p, s)
		quotas[i] = ratelimit.Quota{Key: p.bucketKey(s), Limit: rate.Limit, Window: rate.Window}
	}

	results, err := c.limiter.AllowAll(ctx, quotas)
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit %s: %w", policyNames(policies), err)
	}

	tightest := -1
	for i, res := range results {
		if !res.Allowed {
			tightest = i
			break
		}
		if tightest < 0 || res.Remaining < results[tightest].Remaining {
			tightest = i
		}
	}
	if tightest < 0 {
		return ratelimit.Result{}, nil
	}

	res := results[tightest]
	if res.Allowed {
		return res, nil
	}

	p := policies[tightest]
	c.recorder.IncRateLimited(p.Name)
	c.logger.Info("rate limited",
		"policy", p.Name,
		"limit", quotas[tightest].Limit,
		"window", quotas[tightest].Window.String(),
		"user_id", userID(s.Caller),
	)
	return res, &RateLimitedError{
		Policy:     p.Name,
		Limit:      quotas[tightest].Limit,
		Window:     quotas[tightest].Window,
		ResetAt:    res.ResetAt,
		RetryAfter: res.RetryAfter(c.now()),
	}
}

func policyNames(policies []Policy) string {
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Name
	}
	return strings.Join(names, ",")
}

// CheckCredits verifies the caller can pay for op. It never debits.
func (c *Controller) CheckCredits(user *model.User, op Operation) error {
	cost := c.Cost(op)
	if user.HasCredits(cost) {
		return nil
	}
	c.recorder.IncInsufficientCredits("precheck")
	return &InsufficientCreditsError{Required: cost, Available: user.Credits}
}

// Commit debits op's cost and appends log atomically. On success the user's
// in-memory balance is updated and the remaining balance returned. A balance
// drained since CheckCredits yields *InsufficientCreditsError with AtCommit set.
func (c *Controller) Commit(ctx context.Context, user *model.User, op Operation, log *model.RequestLog) (int, error) {
	cost := c.Cost(op)

	remaining, err := c.store.ChargeCredits(ctx, user.ID, cost, log)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			c.recorder.IncInsufficientCredits("commit")
			c.logger.Info("debit lost race",
				"user_id", user.ID,
				"operation", string(op),
				"cost", cost,
			)
			return 0, &InsufficientCreditsError{Required: cost, AtCommit: true}
		}
		return 0, fmt.Errorf("commit %s: %w", op, err)
	}

	user.Credits = remaining
	c.recorder.AddCreditsDebited(cost)
	return remaining, nil
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
