package usecase

import (
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const notifyTimeout = 2 * time.Second

type Listener func(ctx context.Context, ev domain.ProgressEvent)

type subscription struct {
	id     uint64
	userID string // empty means all users
	fn     Listener
}

// Bus fans progress events out to in-process listeners. Listeners run
// synchronously in the publishing goroutine, in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of one user and returns a function that
// removes it.
func (b *Bus) Subscribe(userID string, fn Listener) (unsubscribe func()) {
	return b.add(userID, fn)
}

// SubscribeAll registers fn for events of every user.
func (b *Bus) SubscribeAll(fn Listener) (unsubscribe func()) {
	return b.add("", fn)
}

func (b *Bus) add(userID string, fn Listener) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, userID: userID, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(ctx context.Context, ev domain.ProgressEvent) {
	b.mu.RLock()
	targets := make([]Listener, 0, len(b.subs))
	for _, s := range b.subs {
		if s.userID == "" || s.userID == ev.UserID {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, ev)
	}
}

// NotifyListener forwards bus events to an out-of-process Notifier. Failures
// are logged; progress delivery never fails a run.
func NotifyListener(n ports.Notifier) Listener {
	return func(ctx context.Context, ev domain.ProgressEvent) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user", ev.UserID).Msg("progress notify failed")
		}
	}
}
