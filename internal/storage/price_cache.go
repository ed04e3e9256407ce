package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/types"
)

// PriceCache is the short-lived price cache owned by the price resolver.
// Entries expire after the configured TTL; within the TTL window a cached
// price is served without any provider calls. Expiry is delegated to Redis so
// the policy is uniform and testable rather than scattered timestamp checks.
type PriceCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewPriceCache creates a price cache with the given freshness TTL
func NewPriceCache(redis *RedisCache, ttl time.Duration) *PriceCache {
	return &PriceCache{
		redis: redis,
		ttl:   ttl,
	}
}

// Key builds the cache key for a (chain family, token) pair.
// Format: price:<family>:<token>
// EVM addresses are case-insensitive and get normalized; SVM mint addresses
// are base58 and must keep their case.
func (c *PriceCache) Key(family types.ChainFamily, token string) string {
	if family == types.FamilyEVM {
		token = strings.ToLower(token)
	}
	return fmt.Sprintf("price:%s:%s", family, token)
}

// Get returns the cached price for the token, or found=false on a miss.
func (c *PriceCache) Get(ctx context.Context, family types.ChainFamily, token string) (*models.Price, bool, error) {
	data, err := c.redis.Get(ctx, c.Key(family, token))
	if err != nil {
		// Key not found is not an error, just a cache miss
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}

	var price models.Price
	if err := json.Unmarshal([]byte(data), &price); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached price: %w", err)
	}
	return &price, true, nil
}

// Set stores a price with the configured TTL
func (c *PriceCache) Set(ctx context.Context, price *models.Price) error {
	data, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("failed to marshal price: %w", err)
	}
	return c.redis.Set(ctx, c.Key(price.Chain, price.Token), data, c.ttl)
}

// Invalidate removes the cached price for a token
func (c *PriceCache) Invalidate(ctx context.Context, family types.ChainFamily, token string) error {
	return c.redis.Del(ctx, c.Key(family, token))
}

// TTL returns the configured freshness window
func (c *PriceCache) TTL() time.Duration {
	return c.ttl
}
