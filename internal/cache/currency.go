package cache

import (
	"context"
	"fmt"
	"time"
)

const currenciesKey = "currencies:v1"

// GetCurrencies returns the cached code→name map.
// Returns ErrCacheMiss if not cached.
func (c *Cache) GetCurrencies(ctx context.Context) (map[string]string, error) {
	result, err := c.client.HGetAll(ctx, currenciesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}
	return result, nil
}

// SetCurrencies replaces the cached currency list.
func (c *Cache) SetCurrencies(ctx context.Context, currencies map[string]string, ttl time.Duration) error {
	if len(currencies) == 0 {
		return nil
	}

	fields := make(map[string]any, len(currencies))
	for code, name := range currencies {
		fields[code] = name
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, currenciesKey)
	pipe.HSet(ctx, currenciesKey, fields)
	pipe.Expire(ctx, currenciesKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set currencies failed: %w", err)
	}
	return nil
}

// InvalidateCurrencies drops the cached list.
func (c *Cache) InvalidateCurrencies(ctx context.Context) error {
	return c.client.Del(ctx, currenciesKey).Err()
}
