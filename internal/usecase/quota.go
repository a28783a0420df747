package usecase

import (
	"bulkq/internal/ports"
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrQuotaExceeded = errors.New("task quota exceeded")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// QuotaGate is consulted before a batch is enqueued. Usage is counted per
// user in fixed windows; a zero Limit disables the window check.
type QuotaGate struct {
	Counter  ports.QuotaCounter
	Limit    int
	MaxBatch int
	Window   time.Duration

	now func() time.Time
}

// Reserve charges n tasks to the user's current window.
func (g QuotaGate) Reserve(ctx context.Context, userID string, n int) error {
	if g.MaxBatch > 0 && n > g.MaxBatch {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, n, g.MaxBatch)
	}
	if g.Limit <= 0 || g.Counter == nil || n == 0 {
		return nil
	}

	ttl := g.windowLength()
	window := g.windowStart(ttl)
	used, err := g.Counter.Add(ctx, userID, window, ttl, n)
	if err != nil {
		return fmt.Errorf("quota: reserve: %w", err)
	}
	if used > g.Limit {
		if _, err := g.Counter.Add(ctx, userID, window, ttl, -n); err != nil {
			return fmt.Errorf("quota: rollback: %w", err)
		}
		return fmt.Errorf("%w: %d of %d used", ErrQuotaExceeded, used-n, g.Limit)
	}
	return nil
}

// Release returns n tasks to the user's current window, undoing a
// reservation whose batch was not accepted.
func (g QuotaGate) Release(ctx context.Context, userID string, n int) error {
	if g.Limit <= 0 || g.Counter == nil || n == 0 {
		return nil
	}
	ttl := g.windowLength()
	if _, err := g.Counter.Add(ctx, userID, g.windowStart(ttl), ttl, -n); err != nil {
		return fmt.Errorf("quota: release: %w", err)
	}
	return nil
}

func (g QuotaGate) windowLength() time.Duration {
	if g.Window <= 0 {
		return 24 * time.Hour
	}
	return g.Window
}

func (g QuotaGate) windowStart(length time.Duration) time.Time {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	return now().UTC().Truncate(length)
}
