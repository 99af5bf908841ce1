package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/api/model"
	"github.com/cuongbtq/task-tracker/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const taskColumns = `id, description, status, result, created_at, updated_at, user_id`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return NewStorageWithDB(pg.GetDB())
}

func NewStorageWithDB(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateTask inserts a pending task and returns the stored row, including the
// server-assigned id and timestamps
func (s *Storage) CreateTask(ctx context.Context, task domain.NewTask) (*domain.Task, error) {
	if task.UserID == "" {
		return nil, domain.ErrNoSession
	}

	query := `
		INSERT INTO tasks (
			id, description, status, user_id
		) VALUES (
			$1, $2, $3, $4
		)
		RETURNING ` + taskColumns

	var row model.Task
	err := s.db.GetContext(
		ctx,
		&row,
		query,
		uuid.New().String(),
		task.Description,
		string(domain.TaskStatusPending),
		task.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	created := row.ToDomain()
	return &created, nil
}

// GetTask returns a single task owned by userID
func (s *Storage) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`

	var row model.Task
	err := s.db.GetContext(ctx, &row, query, taskID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task := row.ToDomain()
	return &task, nil
}

type TaskFilter struct {
	UserID string
	// PageSize of zero returns every row for the user
	PageSize int
	Cursor   *TaskCursor
}

type TaskCursor struct {
	CreatedAt time.Time
	TaskID    string
}

// ListTasks returns the user's tasks newest first. When PageSize is set, one
// extra row is fetched so the caller can tell whether another page exists.
func (s *Storage) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	if filter.UserID == "" {
		return nil, domain.ErrNoSession
	}

	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE user_id = $1
    `
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.TaskID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var rows []model.Task
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]domain.Task, len(rows))
	for i := range rows {
		tasks[i] = rows[i].ToDomain()
	}

	return tasks, nil
}
