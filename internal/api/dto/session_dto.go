package dto

import (
	"time"

	"github.com/cuongbtq/task-tracker/internal/session"
)

type CreateSessionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds" binding:"omitempty,min=1"`
}

type SessionDTO struct {
	Token     string    `json:"token,omitempty"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionDTO omits the token unless withToken is set
func NewSessionDTO(s *session.Session, withToken bool) SessionDTO {
	out := SessionDTO{
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
	if withToken {
		out.Token = s.Token
	}
	return out
}

type SessionEventDTO struct {
	Type    string      `json:"type"`
	Session *SessionDTO `json:"session,omitempty"`
}

func NewSessionEventDTO(ev session.Event) SessionEventDTO {
	out := SessionEventDTO{Type: string(ev.Type)}
	if ev.Session != nil {
		s := NewSessionDTO(ev.Session, false)
		out.Session = &s
	}
	return out
}
