package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache keeps reconciliation snapshots in Redis so dashboard polling
// does not refold the stop list on every request. Mutations invalidate; a
// miss recomputes. The cache is best-effort: every failure degrades to a
// recompute, never to an error.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache constructs a cache. A nil client disables caching.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(deliveryID int64) string {
	return fmt.Sprintf("dispatch:summary:%d", deliveryID)
}

// Get returns the cached summary for a delivery, if present.
func (c *SummaryCache) Get(ctx context.Context, deliveryID int64) (*Summary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, summaryKey(deliveryID)).Bytes()
	if err != nil {
		return nil, false
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Set stores a freshly computed summary.
func (c *SummaryCache) Set(ctx context.Context, deliveryID int64, s Summary) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, summaryKey(deliveryID), data, c.ttl).Err()
}

// Invalidate drops the cached summary after a mutation.
func (c *SummaryCache) Invalidate(ctx context.Context, deliveryID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, summaryKey(deliveryID)).Err()
}
