package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/api/dto"
)

// Insert calls POST /api/v1/tasks
func (c *Client) Insert(ctx context.Context, description, userID string) (domain.Task, error) {
	req := dto.CreateTaskRequest{Description: description, UserID: userID}

	var out dto.TaskDTO
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", nil, req, &out); err != nil {
		return domain.Task{}, err
	}
	return out.ToDomain(), nil
}

// List calls GET /api/v1/tasks and returns the caller's full list. The
// server scopes rows to the session, so userID is not sent.
func (c *Client) List(ctx context.Context, _ string) ([]domain.Task, error) {
	page, err := c.ListPage(ctx, 0, "")
	if err != nil {
		return nil, err
	}
	return page.Tasks, nil
}

// Page is one keyset page; NextCursor is empty on the last page
type Page struct {
	Tasks      []domain.Task
	NextCursor string
}

// ListPage fetches one page. pageSize 0 returns the whole list.
func (c *Client) ListPage(ctx context.Context, pageSize int, cursor string) (Page, error) {
	query := url.Values{}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var out dto.ListTasksResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", query, nil, &out); err != nil {
		return Page{}, err
	}

	tasks := make([]domain.Task, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		tasks = append(tasks, t.ToDomain())
	}
	return Page{Tasks: tasks, NextCursor: out.NextCursor}, nil
}

// GetTask calls GET /api/v1/tasks/:id
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var out dto.TaskDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return domain.Task{}, err
	}
	return out.ToDomain(), nil
}
