package model

import (
	"database/sql"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
)

type Task struct {
	ID          string         `db:"id"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Result      sql.NullString `db:"result"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	UserID      string         `db:"user_id"`
}

// ToDomain converts a scanned row into the domain representation
func (t *Task) ToDomain() domain.Task {
	out := domain.Task{
		ID:          t.ID,
		Description: t.Description,
		Status:      domain.TaskStatus(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	}
	if t.Result.Valid {
		result := t.Result.String
		out.Result = &result
	}
	return out
}
