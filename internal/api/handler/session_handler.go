package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/dto"
	"github.com/cuongbtq/task-tracker/internal/metrics"
	"github.com/cuongbtq/task-tracker/internal/session"
	"github.com/cuongbtq/task-tracker/shared/errtrack"
	"github.com/gin-gonic/gin"
)

// AdminTokenHeader authorizes session provisioning
const AdminTokenHeader = "X-Admin-Token"

// SessionHandler exposes the session provider over HTTP
type SessionHandler struct {
	logger     *slog.Logger
	sessions   SessionStore
	tracker    *errtrack.Tracker
	adminToken string
	ttl        time.Duration
	heartbeat  time.Duration
}

func NewSessionHandler(deps *Dependencies) *SessionHandler {
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &SessionHandler{
		logger:     deps.Logger,
		sessions:   deps.Sessions,
		tracker:    deps.Tracker,
		adminToken: deps.AdminToken,
		ttl:        ttl,
		heartbeat:  heartbeat,
	}
}

// CreateSession handles POST /api/v1/auth/sessions
// Provisioning hook for the identity provider, disabled without an admin token.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	if h.adminToken == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	supplied := c.GetHeader(AdminTokenHeader)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ttl := h.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.UserID, ttl)
	if err != nil {
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	metrics.RecordSessionEvent(string(session.EventSignedIn))
	c.JSON(http.StatusCreated, dto.NewSessionDTO(sess, true))
}

// GetSession handles GET /api/v1/auth/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionDTO(sess, false))
}

// DeleteSession handles DELETE /api/v1/auth/session
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), sess.Token); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.tracker.LogAndCapture(c.Request.Context(), err, "Failed to revoke session",
			slog.String("user_id", sess.UserID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke session"})
		return
	}

	metrics.RecordSessionEvent(string(session.EventSignedOut))
	c.Status(http.StatusNoContent)
}

// StreamEvents handles GET /api/v1/auth/session/events
// Server-sent events: a "ready" event once the listener is attached, then one
// event per session change. The stream ends after signed_out.
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	sess, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.sessions.Subscribe(ctx, sess.Token)
	if err != nil {
		h.tracker.LogAndCapture(ctx, err, "Failed to subscribe to session events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to session events"})
		return
	}
	defer sub.Close()

	metrics.SessionStreamOpened()
	defer metrics.SessionStreamClosed()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", dto.NewSessionDTO(sess, false))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			c.Writer.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(string(ev.Type), dto.NewSessionEventDTO(ev))
			c.Writer.Flush()

			if ev.Type == session.EventSignedOut {
				h.logger.Debug("Session stream closed after sign-out",
					slog.String("user_id", sess.UserID),
				)
				return
			}
		}
	}
}
