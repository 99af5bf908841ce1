package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	taskHandler := handler.NewTaskHandler(deps)
	sessionHandler := handler.NewSessionHandler(deps)
	auth := AuthMiddleware(deps.Sessions, deps.Logger)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/auth/sessions - Issue a session (admin token)
		v1.POST("/auth/sessions", sessionHandler.CreateSession)

		current := v1.Group("/auth/session", auth)
		{
			// GET /api/v1/auth/session - Current session lookup
			current.GET("", sessionHandler.GetSession)

			// GET /api/v1/auth/session/events - Session change stream
			current.GET("/events", sessionHandler.StreamEvents)

			// DELETE /api/v1/auth/session - Sign out
			current.DELETE("", sessionHandler.DeleteSession)
		}

		tasks := v1.Group("/tasks", auth)
		{
			// POST /api/v1/tasks - Insert a task for the session user
			tasks.POST("", taskHandler.CreateTask)

			// GET /api/v1/tasks - List the session user's tasks, newest first
			tasks.GET("", taskHandler.ListTasks)

			// GET /api/v1/tasks/:id - Get one owned task
			tasks.GET("/:id", taskHandler.GetTask)
		}
	}

	return r
}

func healthHandler(checks []handler.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "task-api-service",
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "task-api-service",
		})
	}
}
