package redisq

import (
	"bulkq/internal/ports"
	"context"
	"fmt"
	"time"
)

var _ ports.QuotaCounter = (*Client)(nil)

func (c *Client) quotaKey(userID string, window time.Time) string {
	return fmt.Sprintf("%s:%s:%d", c.Cfg.QuotaPrefix, userID, window.Unix())
}

// Add increments the usage counter for the window and refreshes its expiry.
func (c *Client) Add(ctx context.Context, userID string, window time.Time, ttl time.Duration, n int) (int, error) {
	key := c.quotaKey(userID, window)

	pipe := c.Rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(n))
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("quota counter %s: %w", key, err)
	}
	return int(incr.Val()), nil
}
