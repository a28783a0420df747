package usecase

import (
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urlTasks(urls ...string) []domain.Task {
	tasks := make([]domain.Task, 0, len(urls))
	for _, u := range urls {
		tasks = append(tasks, domain.Task{ID: u, Type: "thumbnail", Payload: map[string]string{"url": u}})
	}
	return tasks
}

var noop = ports.ProcessorFunc(func(ctx context.Context, t domain.Task) (map[string]string, error) {
	return map[string]string{"url": t.URL()}, nil
})

func TestAddToQueueAppendsAndResets(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a", "b"), noop))
	require.NoError(t, s.AddToQueue("u1", urlTasks("c"), nil))

	snap, ok := s.GetQueueStatus("u1")
	require.True(t, ok)
	assert.Equal(t, urlTasks("a", "b", "c"), snap.Tasks)
	assert.Equal(t, domain.QueueIdle, snap.Status)
	assert.Zero(t, snap.CurrentIndex)
	assert.Empty(t, snap.Results)
}

func TestAddToQueueDiscardsPreviousResults(t *testing.T) {
	t.Parallel()

	s := NewStore()
	r := NewRunner(s, NewBus())
	require.NoError(t, s.AddToQueue("u1", urlTasks("a"), noop))
	_, err := r.ProcessQueue(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, s.AddToQueue("u1", urlTasks("b"), nil))
	snap, _ := s.GetQueueStatus("u1")
	assert.Equal(t, domain.QueueIdle, snap.Status)
	assert.Zero(t, snap.CurrentIndex)
	assert.Empty(t, snap.Results)
	assert.Len(t, snap.Tasks, 2)
}

func TestAddToQueueAssignsIDs(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", []domain.Task{{Type: "resize"}}, nil))
	snap, _ := s.GetQueueStatus("u1")
	require.Len(t, snap.Tasks, 1)
	assert.NotEmpty(t, snap.Tasks[0].ID)
}

func TestGetQueueStatusMissing(t *testing.T) {
	t.Parallel()

	_, ok := NewStore().GetQueueStatus("nobody")
	assert.False(t, ok)
}

func TestGetQueueStatusReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a"), nil))
	snap, _ := s.GetQueueStatus("u1")
	snap.Tasks[0].ID = "changed"

	again, _ := s.GetQueueStatus("u1")
	assert.Equal(t, "a", again.Tasks[0].ID)
}

func TestQueueDoesNotSharePayloads(t *testing.T) {
	t.Parallel()

	s := NewStore()
	tasks := urlTasks("a")
	require.NoError(t, s.AddToQueue("u1", tasks, noop))
	tasks[0].Payload["url"] = "caller"

	snap, _ := s.GetQueueStatus("u1")
	snap.Tasks[0].Payload["url"] = "snapshot"

	again, _ := s.GetQueueStatus("u1")
	assert.Equal(t, "a", again.Tasks[0].URL())

	results, err := NewRunner(s, NewBus()).ProcessQueue(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	results[0].Task.Payload["url"] = "result"
	results[0].Result["url"] = "result"

	again, _ = s.GetQueueStatus("u1")
	assert.Equal(t, "a", again.Results[0].Task.URL())
	assert.Equal(t, map[string]string{"url": "a"}, again.Results[0].Result)
}

func TestControlOperationsOnMissingQueue(t *testing.T) {
	t.Parallel()

	s := NewStore()
	assert.False(t, s.PauseQueue("x"))
	assert.False(t, s.ResumeQueue("x"))
	assert.False(t, s.CancelQueue("x"))
	assert.False(t, s.ClearQueue("x"))
}

func TestPauseKeepsTasksAndCursor(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a", "b"), nil))
	require.True(t, s.PauseQueue("u1"))

	snap, _ := s.GetQueueStatus("u1")
	assert.Equal(t, domain.QueuePaused, snap.Status)
	assert.Len(t, snap.Tasks, 2)
	assert.Zero(t, snap.CurrentIndex)
}

func TestResumeRequiresPaused(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(s *Store, r *Runner)
		status domain.QueueStatus
	}{
		{
			name:   "idle",
			setup:  func(s *Store, r *Runner) {},
			status: domain.QueueIdle,
		},
		{
			name: "completed",
			setup: func(s *Store, r *Runner) {
				_, _ = r.ProcessQueue(context.Background(), "u1")
			},
			status: domain.QueueCompleted,
		},
		{
			name:   "cancelled",
			setup:  func(s *Store, r *Runner) { s.CancelQueue("u1") },
			status: domain.QueueCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewStore()
			r := NewRunner(s, NewBus())
			require.NoError(t, s.AddToQueue("u1", urlTasks("a"), noop))
			tt.setup(s, r)

			assert.False(t, s.ResumeQueue("u1"))
			snap, _ := s.GetQueueStatus("u1")
			assert.Equal(t, tt.status, snap.Status)
		})
	}
}

func TestPauseThenResume(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a"), nil))
	require.True(t, s.PauseQueue("u1"))
	require.True(t, s.ResumeQueue("u1"))

	snap, _ := s.GetQueueStatus("u1")
	assert.Equal(t, domain.QueueRunning, snap.Status)
}

func TestCancelClearsTasks(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a", "b"), nil))
	require.True(t, s.CancelQueue("u1"))

	snap, ok := s.GetQueueStatus("u1")
	require.True(t, ok)
	assert.Equal(t, domain.QueueCancelled, snap.Status)
	assert.Empty(t, snap.Tasks)
	assert.Zero(t, snap.CurrentIndex)
}

func TestClearRemovesQueue(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a"), noop))
	require.True(t, s.ClearQueue("u1"))

	_, ok := s.GetQueueStatus("u1")
	assert.False(t, ok)
	assert.False(t, s.ClearQueue("u1"))

	// the processor went with it
	require.NoError(t, s.AddToQueue("u1", urlTasks("b"), nil))
	_, err := NewRunner(s, NewBus()).ProcessQueue(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoProcessor)
}

func TestQueuesAreIndependentPerUser(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddToQueue("u1", urlTasks("a"), nil))
	require.NoError(t, s.AddToQueue("u2", urlTasks("b", "c"), nil))
	require.True(t, s.CancelQueue("u1"))

	snap, _ := s.GetQueueStatus("u2")
	assert.Equal(t, domain.QueueIdle, snap.Status)
	assert.Len(t, snap.Tasks, 2)
}
