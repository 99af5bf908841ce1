package domain

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task row. Transitions are owned by
// an external executor; this service only stores and reports them.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state that may carry a result
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is a durable task record owned by a single user
type Task struct {
	ID          string
	Description string
	Status      TaskStatus
	Result      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      string
}

// NewTask carries the client-supplied fields of an insert
type NewTask struct {
	Description string
	UserID      string
}

// NormalizeDescription trims surrounding whitespace and rejects empty input
func NormalizeDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "", ErrEmptyDescription
	}
	return trimmed, nil
}
