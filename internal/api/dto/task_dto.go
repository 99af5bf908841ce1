package dto

import (
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
)

// CreateTaskRequest is the insert body. Description is validated after
// trimming so blank input gets a specific error.
type CreateTaskRequest struct {
	Description string `json:"description"`
	UserID      string `json:"user_id" binding:"required"`
}

type ListTasksRequest struct {
	PageSize int    `form:"page_size" binding:"omitempty,min=0,max=100"`
	Cursor   string `form:"cursor"`
}

type ListTasksResponse struct {
	Tasks      []TaskDTO `json:"tasks"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type TaskDTO struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Result      *string   `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      string    `json:"user_id"`
}

func NewTaskDTO(t domain.Task) TaskDTO {
	return TaskDTO{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	}
}

func (d TaskDTO) ToDomain() domain.Task {
	return domain.Task{
		ID:          d.ID,
		Description: d.Description,
		Status:      domain.TaskStatus(d.Status),
		Result:      d.Result,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		UserID:      d.UserID,
	}
}

// TaskCreatedEvent is published to the broker after a successful insert
type TaskCreatedEvent struct {
	Type        string    `json:"type"`
	TaskID      string    `json:"task_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
