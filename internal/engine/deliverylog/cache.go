// internal/engine/deliverylog/cache.go
package deliverylog

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"subtrack-notifier/internal/models"
)

// ClaimCache is a Redis positive cache in front of the delivery_log table:
// it only ever records keys whose claim outcome Postgres has confirmed, so a
// cache miss falls through to the table and a cache failure is never more
// than a skipped shortcut. Correctness stays with the unique index.
type ClaimCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewClaimCache(rdb *redis.Client, ttl time.Duration) *ClaimCache {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &ClaimCache{redis: rdb, ttl: ttl}
}

func cacheKey(key models.DeliveryKey) string {
	return "claim:" + key.String()
}

// Seen reports whether the key is known to be claimed already.
func (c *ClaimCache) Seen(ctx context.Context, key models.DeliveryKey) bool {
	n, err := c.redis.Exists(ctx, cacheKey(key)).Result()
	return err == nil && n > 0
}

// Mark records a confirmed claim.
func (c *ClaimCache) Mark(ctx context.Context, key models.DeliveryKey) {
	_ = c.redis.Set(ctx, cacheKey(key), "1", c.ttl).Err()
}

// Forget drops a released claim so the next sweep reaches the table again.
func (c *ClaimCache) Forget(ctx context.Context, key models.DeliveryKey) {
	_ = c.redis.Del(ctx, cacheKey(key)).Err()
}
