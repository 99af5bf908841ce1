package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/api/storage"
	"github.com/cuongbtq/task-tracker/internal/session"
	"github.com/cuongbtq/task-tracker/shared/errtrack"
	"github.com/gin-gonic/gin"
)

// SessionContextKey is where AuthMiddleware stores the caller's session
const SessionContextKey = "session"

// TaskRepository is the Remote Task Table
type TaskRepository interface {
	CreateTask(ctx context.Context, task domain.NewTask) (*domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter storage.TaskFilter) ([]domain.Task, error)
}

// SessionStore is the authentication session provider
type SessionStore interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*session.Session, error)
	Lookup(ctx context.Context, token string) (*session.Session, error)
	Revoke(ctx context.Context, token string) error
	Subscribe(ctx context.Context, token string) (*session.Subscription, error)
}

// EventPublisher delivers task lifecycle events to the executor
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// HealthChecker reports backing store reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Tasks    TaskRepository
	Sessions SessionStore
	// Publisher is nil when event publishing is disabled
	Publisher  EventPublisher
	RoutingKey string
	Tracker    *errtrack.Tracker
	Health     []HealthChecker

	AdminToken        string
	SessionTTL        time.Duration
	HeartbeatInterval time.Duration
}

// CurrentSession returns the session AuthMiddleware attached to c
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(SessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok && sess != nil
}
