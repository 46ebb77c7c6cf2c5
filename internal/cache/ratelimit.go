package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fxgate/fxgate/internal/ratelimit"
)

const rateLimitKeyPrefix = "ratelimit:"

// fixedWindowScript counts a request in the current window of every key
// unless one of them has already reached its limit, in which case nothing is
// counted. Keys carry their window start, so the first INCR also sets the
// expiry. ARGV holds a limit and a TTL in milliseconds per key. Returns
// {admitted, count1, count2, ...}.
var fixedWindowScript = redis.NewScript(`
	local counts = {}
	local admitted = 1
	for i, key in ipairs(KEYS) do
		local limit = tonumber(ARGV[2 * i - 1])
		counts[i] = tonumber(redis.call('GET', key) or '0')
		if counts[i] >= limit then
			admitted = 0
		end
	end

	if admitted == 1 then
		for i, key in ipairs(KEYS) do
			counts[i] = redis.call('INCR', key)
			if counts[i] == 1 then
				redis.call('PEXPIRE', key, tonumber(ARGV[2 * i]))
			end
		end
	end

	local out = {admitted}
	for i = 1, #counts do
		out[i + 1] = counts[i]
	end
	return out
`)

// Allow implements ratelimit.Limiter on Redis so counters are shared across
// instances. Redis failures fail open.
func (c *Cache) Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error) {
	res, err := c.AllowAll(ctx, []ratelimit.Quota{{Key: key, Limit: limit, Window: window}})
	if err != nil {
		return ratelimit.Result{}, err
	}
	return res[0], nil
}

// AllowAll implements ratelimit.Limiter. All quotas are checked and counted
// by one script, so the decision is atomic across keys.
func (c *Cache) AllowAll(ctx context.Context, quotas []ratelimit.Quota) ([]ratelimit.Result, error) {
	if err := ratelimit.ValidateQuotas(quotas); err != nil {
		return nil, err
	}

	now := c.now()
	keys := make([]string, len(quotas))
	args := make([]any, 0, 2*len(quotas))
	results := make([]ratelimit.Result, len(quotas))
	for i, q := range quotas {
		start := ratelimit.WindowStart(now, q.Window)
		reset := start.Add(q.Window)
		keys[i] = rateLimitKeyPrefix + q.Key + ":" + strconv.FormatInt(start.Unix(), 10)

		// Keep the key a little past the window end so late replicas still see it.
		ttl := reset.Sub(now) + time.Second
		args = append(args, q.Limit, ttl.Milliseconds())

		results[i] = ratelimit.Result{Allowed: true, Limit: q.Limit, Remaining: q.Limit, ResetAt: reset}
	}

	out, err := fixedWindowScript.Run(ctx, c.client, keys, args...).Int64Slice()
	if err != nil || len(out) != len(quotas)+1 {
		c.logger.Warn("rate limit check failed, allowing request",
			"error", err,
		)
		return results, nil
	}

	admitted := out[0] == 1
	for i := range results {
		count := int(out[i+1])
		remaining := results[i].Limit - count
		if remaining < 0 {
			remaining = 0
		}
		results[i].Remaining = remaining
		if !admitted {
			results[i].Allowed = count < results[i].Limit
			if !results[i].Allowed {
				results[i].Remaining = 0
			}
		}
	}
	return results, nil
}

var _ ratelimit.Limiter = (*Cache)(nil)
