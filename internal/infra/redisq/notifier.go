package redisq

import (
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

var _ ports.Notifier = (*Client)(nil)

// Notify publishes ev on the user's channel.
func (c *Client) Notify(ctx context.Context, ev domain.ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := c.Rdb.Publish(ctx, c.Channel(ev.UserID), b).Err(); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Subscribe delivers the user's progress events to fn until ctx is done or
// the subscription breaks. Malformed messages are skipped.
func (c *Client) Subscribe(ctx context.Context, userID string, fn func(domain.ProgressEvent)) error {
	sub := c.Rdb.Subscribe(ctx, c.Channel(userID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.Channel(userID), err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", c.Channel(userID))
			}
			var ev domain.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("skipping malformed progress message")
				continue
			}
			fn(ev)
		}
	}
}
