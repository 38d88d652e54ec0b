// Package redis caches derived wallet balances. The cache is never the
// authority: a miss or an error falls back to the ledger, and reconciliation
// overwrites any entry that disagrees with a replay.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

const keyPrefix = "wallet:balance:"

// BalanceCache implements ledger.Cache.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache creates a cache whose entries expire after ttl.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func key(promoterID string) string { return keyPrefix + promoterID }

func (c *BalanceCache) Get(ctx context.Context, promoterID string) (*domain.Balance, error) {
	data, err := c.client.Get(ctx, key(promoterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached balance: %w", err)
	}
	var b domain.Balance
	if err := json.Unmarshal(data, &b); err != nil {
		// A corrupt entry is a miss; the next Set replaces it.
		return nil, nil
	}
	return &b, nil
}

func (c *BalanceCache) Set(ctx context.Context, b domain.Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	return c.client.Set(ctx, key(b.PromoterID), data, c.ttl).Err()
}

func (c *BalanceCache) Invalidate(ctx context.Context, promoterID string) error {
	return c.client.Del(ctx, key(promoterID)).Err()
}
