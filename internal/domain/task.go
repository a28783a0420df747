package domain

import "time"

type TaskStatus string

const (
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
)

// Task is one unit of bulk work. Type selects the operation and Payload
// carries its arguments, at minimum the target resource ("url").
type Task struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

// URL returns the resource the task targets.
func (t Task) URL() string {
	return t.Payload["url"]
}

type Result struct {
	Task   Task              `json:"task"`
	Status TaskStatus        `json:"status"`
	Result map[string]string `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	At     time.Time         `json:"at"`
}
