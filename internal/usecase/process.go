package usecase

import (
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner drains user queues one task at a time and publishes progress on Bus.
type Runner struct {
	Store *Store
	Bus   *Bus
}

func NewRunner(s *Store, b *Bus) *Runner {
	return &Runner{Store: s, Bus: b}
}

// ProcessQueue runs the user's queue from its cursor to the end, strictly in
// order. Task failures are recorded, never returned. onProgress listeners
// receive one progress event per attempted task; the closing
// completed/cancelled event goes to Bus subscribers only.
//
// A missing or empty queue yields an empty result list and no error.
func (r *Runner) ProcessQueue(ctx context.Context, userID string, onProgress ...Listener) ([]domain.Result, error) {
	results := []domain.Result{}

	s := r.Store
	s.mu.Lock()
	q, ok := s.queues[userID]
	if !ok || q.cursor >= len(q.tasks) {
		s.mu.Unlock()
		return results, nil
	}
	if q.active {
		s.mu.Unlock()
		return results, ErrAlreadyRunning
	}
	if q.processor == nil {
		s.mu.Unlock()
		return results, ErrNoProcessor
	}
	q.active = true
	q.stopped = false
	q.setStatus(domain.QueueRunning)
	q.results = nil
	tasks := q.tasks
	start := q.cursor
	proc := q.processor
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		q.active = false
		s.mu.Unlock()
	}()

	// run listeners only see this run's progress events
	unsubscribe := make([]func(), 0, len(onProgress))
	for _, fn := range onProgress {
		unsubscribe = append(unsubscribe, r.Bus.Subscribe(userID, fn))
	}
	defer func() {
		for _, u := range unsubscribe {
			u()
		}
	}()

	logger := log.With().Str("user", userID).Logger()
	ctx = logger.WithContext(ctx)
	log.Ctx(ctx).Info().Int("tasks", len(tasks)).Int("from", start).Msg("queue run started")

	total := len(tasks)
	var runErr error
	for i := start; i < total; i++ {
		proceed, err := r.awaitTurn(ctx, q)
		if err != nil {
			runErr = err
			break
		}
		if !proceed {
			break
		}

		s.mu.Lock()
		q.cursor = i
		s.mu.Unlock()

		res := invoke(ctx, proc, cloneTask(tasks[i]))
		results = append(results, res)

		s.mu.Lock()
		q.results = append(q.results, res)
		s.mu.Unlock()

		if res.Status == domain.StatusFailed {
			log.Ctx(ctx).Warn().Str("task", res.Task.ID).Int("index", i).Str("error", res.Error).Msg("task failed")
		}

		completed := i + 1
		t := res.Task
		r.Bus.Publish(ctx, domain.ProgressEvent{
			Type:      domain.EventProgress,
			UserID:    userID,
			Task:      &t,
			Progress:  percent(completed, total),
			Completed: completed,
			Total:     total,
			Status:    res.Status,
			Error:     res.Error,
		})
	}

	for _, u := range unsubscribe {
		u()
	}

	s.mu.Lock()
	final := domain.QueueCompleted
	switch {
	case runErr != nil:
		// shutdown cancels like CancelQueue, so no attempted task runs again
		final = domain.QueueCancelled
		q.stopped = true
		q.tasks = nil
		q.cursor = 0
	case q.stopped:
		final = domain.QueueCancelled
	default:
		q.cursor = total
	}
	q.setStatus(final)
	q.results = cloneResults(results)
	s.mu.Unlock()

	completed := start + len(results)
	ev := domain.ProgressEvent{
		Type:      domain.EventCompleted,
		UserID:    userID,
		Progress:  percent(completed, total),
		Completed: completed,
		Total:     total,
	}
	if final == domain.QueueCancelled {
		ev.Type = domain.EventCancelled
	}
	r.Bus.Publish(ctx, ev)

	log.Ctx(ctx).Info().Str("status", string(final)).Int("attempted", len(results)).Msg("queue run finished")
	return results, runErr
}

// awaitTurn blocks while the queue is paused. It reports false once the run
// has been cancelled, even if the queue was paused and resumed since, and
// returns the context error on shutdown.
func (r *Runner) awaitTurn(ctx context.Context, q *queue) (bool, error) {
	for {
		r.Store.mu.Lock()
		status, changed, stopped := q.status, q.changed, q.stopped
		r.Store.mu.Unlock()

		if stopped {
			return false, nil
		}
		switch status {
		case domain.QueuePaused:
			select {
			case <-changed:
			case <-ctx.Done():
				return false, ctx.Err()
			}
		default:
			if err := ctx.Err(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
}

func invoke(ctx context.Context, p ports.Processor, t domain.Task) (res domain.Result) {
	res = domain.Result{Task: t}
	defer func() {
		if rec := recover(); rec != nil {
			res.Status = domain.StatusFailed
			res.Result = nil
			res.Error = fmt.Sprintf("processor panic: %v", rec)
		}
		res.At = time.Now()
	}()

	out, err := p.Process(ctx, t)
	if err != nil {
		res.Status = domain.StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = domain.StatusSuccess
	res.Result = out
	return res
}

func percent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
