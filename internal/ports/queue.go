package ports

import (
	"bulkq/internal/domain"
	"context"
	"io"
	"time"
)

// Processor performs the actual work for a single task.
type Processor interface {
	Process(ctx context.Context, t domain.Task) (map[string]string, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, t domain.Task) (map[string]string, error)

func (f ProcessorFunc) Process(ctx context.Context, t domain.Task) (map[string]string, error) {
	return f(ctx, t)
}

// Notifier pushes progress events to listeners outside the process.
type Notifier interface {
	Notify(ctx context.Context, ev domain.ProgressEvent) error
}

type QuotaCounter interface {
	// Add increments the usage counter for the user in the given window and
	// returns the new total. A negative n rolls a reservation back.
	Add(ctx context.Context, userID string, window time.Time, ttl time.Duration, n int) (int, error)
}

type ObjectStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
}
