package usecase

import (
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrQueueNotFound  = errors.New("queue not found")
	ErrQueueBusy      = errors.New("queue has an active run")
	ErrAlreadyRunning = errors.New("queue is already being processed")
	ErrNoProcessor    = errors.New("no processor registered for queue")
)

// queue is the per-user state. All fields are guarded by Store.mu.
type queue struct {
	tasks     []domain.Task
	status    domain.QueueStatus
	cursor    int
	results   []domain.Result
	processor ports.Processor
	active    bool

	// stopped latches a cancellation for the rest of the current run;
	// pause and resume do not clear it.
	stopped bool

	// changed is closed and replaced whenever status changes, waking any
	// run blocked on a pause.
	changed chan struct{}
}

func (q *queue) setStatus(s domain.QueueStatus) {
	q.status = s
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *queue) snapshot(userID string) domain.Snapshot {
	return domain.Snapshot{
		UserID:       userID,
		Tasks:        cloneTasks(q.tasks),
		Status:       q.status,
		CurrentIndex: q.cursor,
		Results:      cloneResults(q.results),
	}
}

func cloneTask(t domain.Task) domain.Task {
	t.Payload = maps.Clone(t.Payload)
	return t
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return nil
	}
	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = cloneTask(t)
	}
	return out
}

func cloneResults(results []domain.Result) []domain.Result {
	if results == nil {
		return nil
	}
	out := make([]domain.Result, len(results))
	for i, r := range results {
		r.Task = cloneTask(r.Task)
		r.Result = maps.Clone(r.Result)
		out[i] = r
	}
	return out
}

// Store holds one queue per user id. Construct one per server instance.
type Store struct {
	mu     sync.Mutex
	queues map[string]*queue
}

func NewStore() *Store {
	return &Store{queues: make(map[string]*queue)}
}

// AddToQueue appends tasks to the user's queue, creating it if needed, and
// resets the run bookkeeping. A non-nil processor replaces the stored one.
// Appending while a run is active returns ErrQueueBusy.
func (s *Store) AddToQueue(userID string, tasks []domain.Task, p ports.Processor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		q = &queue{status: domain.QueueIdle, changed: make(chan struct{})}
		s.queues[userID] = q
	}
	if q.active {
		return ErrQueueBusy
	}

	for _, t := range tasks {
		t = cloneTask(t)
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		q.tasks = append(q.tasks, t)
	}
	q.stopped = false
	q.setStatus(domain.QueueIdle)
	q.cursor = 0
	q.results = nil
	if p != nil {
		q.processor = p
	}
	return nil
}

// GetQueueStatus returns a copy of the user's queue, or false if none exists.
func (s *Store) GetQueueStatus(userID string) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		return domain.Snapshot{}, false
	}
	return q.snapshot(userID), true
}

func (s *Store) PauseQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		return false
	}
	q.setStatus(domain.QueuePaused)
	return true
}

// ResumeQueue only succeeds for a paused queue.
func (s *Store) ResumeQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok || q.status != domain.QueuePaused {
		return false
	}
	q.setStatus(domain.QueueRunning)
	return true
}

// CancelQueue drops the pending tasks. A run in progress stops before its
// next task; the task in flight is not interrupted.
func (s *Store) CancelQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		return false
	}
	q.stopped = true
	q.setStatus(domain.QueueCancelled)
	q.tasks = nil
	q.cursor = 0
	return true
}

// ClearQueue removes the queue and its processor.
func (s *Store) ClearQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		return false
	}
	// wake a paused run so it can observe the teardown
	q.stopped = true
	q.setStatus(domain.QueueCancelled)
	delete(s.queues, userID)
	return true
}
