package domain

type QueueStatus string

const (
	QueueIdle      QueueStatus = "idle"
	QueueRunning   QueueStatus = "running"
	QueuePaused    QueueStatus = "paused"
	QueueCancelled QueueStatus = "cancelled"
	QueueCompleted QueueStatus = "completed"
)

// Snapshot is a read-only copy of a user's queue.
type Snapshot struct {
	UserID       string      `json:"user_id"`
	Tasks        []Task      `json:"tasks"`
	Status       QueueStatus `json:"status"`
	CurrentIndex int         `json:"current_index"`
	Results      []Result    `json:"results"`
}

const (
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// ProgressEvent is pushed once per attempted task, and once more when a run ends.
type ProgressEvent struct {
	Type      string     `json:"type"`
	UserID    string     `json:"user_id"`
	Task      *Task      `json:"task,omitempty"`
	Progress  int        `json:"progress"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Status    TaskStatus `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
}
