package watch

import (
	"bulkq/internal/config"
	"bulkq/internal/domain"
	"bulkq/internal/infra/redisq"
	"bulkq/pkg/backoff"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	UserID      string
	JSON        bool
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Out         io.Writer
}

type subscriber interface {
	Subscribe(ctx context.Context, userID string, fn func(domain.ProgressEvent)) error
}

// Run prints a user's progress events until interrupted, resubscribing with
// backoff when the Redis connection drops.
func Run(cfg Config) error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	cli := redisq.New(appCfg.Redis)
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return follow(ctx, cli, cfg)
}

func follow(ctx context.Context, sub subscriber, cfg Config) error {
	attempt := 0
	for {
		received := false
		err := sub.Subscribe(ctx, cfg.UserID, func(ev domain.ProgressEvent) {
			received = true
			_, _ = io.WriteString(cfg.Out, Format(ev, cfg.JSON))
		})
		if ctx.Err() != nil {
			return nil
		}
		if received {
			attempt = 0
		}
		attempt++

		log.Warn().Err(err).Int("attempt", attempt).Msg("progress subscription lost, retrying")
		if err := backoff.Sleep(ctx, cfg.BaseBackoff, cfg.MaxBackoff, attempt); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// Format renders one event as a single line.
func Format(ev domain.ProgressEvent, asJSON bool) string {
	if asJSON {
		b, _ := json.Marshal(ev)
		return string(b) + "\n"
	}

	switch ev.Type {
	case domain.EventProgress:
		target := ""
		if ev.Task != nil {
			target = ev.Task.Type + " " + ev.Task.URL()
		}
		line := fmt.Sprintf("[%3d%%] %d/%d %s %s", ev.Progress, ev.Completed, ev.Total, ev.Status, target)
		if ev.Error != "" {
			line += ": " + ev.Error
		}
		return line + "\n"
	default:
		return fmt.Sprintf("queue %s after %d/%d tasks\n", ev.Type, ev.Completed, ev.Total)
	}
}
