package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/api/dto"
	"github.com/cuongbtq/task-tracker/internal/api/storage"
	"github.com/cuongbtq/task-tracker/internal/metrics"
	"github.com/cuongbtq/task-tracker/shared/errtrack"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	logger     *slog.Logger
	tasks      TaskRepository
	publisher  EventPublisher
	routingKey string
	tracker    *errtrack.Tracker
}

// NewTaskHandler creates a new TaskHandler instance
func NewTaskHandler(deps *Dependencies) *TaskHandler {
	routingKey := deps.RoutingKey
	if routingKey == "" {
		routingKey = "task.created"
	}
	return &TaskHandler{
		logger:     deps.Logger,
		tasks:      deps.Tasks,
		publisher:  deps.Publisher,
		routingKey: routingKey,
		tracker:    deps.Tracker,
	}
}

// CreateTask handles POST /api/v1/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrNoSession.Error()})
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		metrics.RecordTaskCreateFailure(metrics.ReasonValidation)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	description, err := domain.NormalizeDescription(req.Description)
	if err != nil {
		metrics.RecordTaskCreateFailure(metrics.ReasonValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.UserID != sess.UserID {
		h.logger.Warn("Rejected insert for another user",
			slog.String("session_user_id", sess.UserID),
			slog.String("body_user_id", req.UserID),
		)
		metrics.RecordTaskCreateFailure(metrics.ReasonForbidden)
		c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrForbidden.Error()})
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), domain.NewTask{
		Description: description,
		UserID:      sess.UserID,
	})
	if err != nil {
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to create task",
			slog.String("user_id", sess.UserID),
		)
		metrics.RecordTaskCreateFailure(metrics.ReasonStorage)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create task",
		})
		return
	}

	metrics.RecordTaskCreated()
	h.logger.Info("Task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", task.UserID),
	)

	h.publishCreated(c, task)

	c.JSON(http.StatusCreated, dto.NewTaskDTO(*task))
}

// publishCreated never fails the request: the row is already durable
func (h *TaskHandler) publishCreated(c *gin.Context, task *domain.Task) {
	if h.publisher == nil {
		return
	}

	body, err := json.Marshal(dto.TaskCreatedEvent{
		Type:        h.routingKey,
		TaskID:      task.ID,
		UserID:      task.UserID,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
	})
	if err == nil {
		err = h.publisher.Publish(c.Request.Context(), h.routingKey, body)
	}
	if err != nil {
		metrics.RecordTaskEventPublishFailure()
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to publish task event",
			slog.String("task_id", task.ID),
		)
	}
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrNoSession.Error()})
		return
	}

	taskID := c.Param("id")
	if _, err := uuid.Parse(taskID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id must be a valid UUID",
		})
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), sess.UserID, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to get task",
			slog.String("task_id", taskID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get task",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewTaskDTO(*task))
}

// ListTasks handles GET /api/v1/tasks
// Without page_size the caller's full list is returned, newest first.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrNoSession.Error()})
		return
	}

	var req dto.ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	cursor, err := DecodeTaskCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	if cursor != nil && req.PageSize == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "cursor requires page_size",
		})
		return
	}

	metrics.RecordTaskList(req.PageSize > 0)

	tasks, err := h.tasks.ListTasks(c.Request.Context(), storage.TaskFilter{
		UserID:   sess.UserID,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to list tasks",
			slog.String("user_id", sess.UserID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list tasks",
		})
		return
	}

	hasMore := req.PageSize > 0 && len(tasks) > req.PageSize
	if hasMore {
		tasks = tasks[:req.PageSize]
	}

	resp := dto.ListTasksResponse{
		Tasks: make([]dto.TaskDTO, len(tasks)),
	}
	for i, task := range tasks {
		resp.Tasks[i] = dto.NewTaskDTO(task)
	}

	if hasMore {
		last := tasks[len(tasks)-1]
		resp.NextCursor = EncodeTaskCursor(&storage.TaskCursor{
			CreatedAt: last.CreatedAt,
			TaskID:    last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}
