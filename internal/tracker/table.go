package tracker

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/google/uuid"
)

// Table is the remote task table as seen by the Store
type Table interface {
	// Insert creates a pending row owned by userID and returns it
	Insert(ctx context.Context, description, userID string) (domain.Task, error)
	// List returns every row owned by userID, newest first
	List(ctx context.Context, userID string) ([]domain.Task, error)
}

// Session is the authenticated identity the Store acts for
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
)

// SessionEvent carries the new session reference; Session is nil after sign-out
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
}

// SessionSource is the authentication session provider
type SessionSource interface {
	// Current returns nil without error when nobody is signed in
	Current(ctx context.Context) (*Session, error)
	// Subscribe delivers session changes to fn until the returned closer is
	// closed
	Subscribe(ctx context.Context, fn func(SessionEvent)) (io.Closer, error)
}

// MemoryTable is a process-local Table. Rows are lost when the process exits.
type MemoryTable struct {
	mu    sync.RWMutex
	rows  []domain.Task
	clock func() time.Time
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{clock: time.Now}
}

func (m *MemoryTable) Insert(_ context.Context, description, userID string) (domain.Task, error) {
	desc, err := domain.NormalizeDescription(description)
	if err != nil {
		return domain.Task{}, err
	}
	if userID == "" {
		return domain.Task{}, domain.ErrNoSession
	}

	now := m.clock().UTC()
	task := domain.Task{
		ID:          uuid.NewString(),
		Description: desc,
		Status:      domain.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
	}

	m.mu.Lock()
	m.rows = append(m.rows, task)
	m.mu.Unlock()

	return task, nil
}

func (m *MemoryTable) List(_ context.Context, userID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Task, 0, len(m.rows))
	// rows are appended in creation order, so walking backwards is newest first
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

// UpdateStatus moves a row to status and records result. It is the hook an
// external executor uses in local mode; the Store never calls it.
func (m *MemoryTable) UpdateStatus(id string, status domain.TaskStatus, result *string) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.rows, func(t domain.Task) bool { return t.ID == id })
	if idx < 0 {
		return domain.ErrTaskNotFound
	}

	row := &m.rows[idx]
	row.Status = status
	row.UpdatedAt = m.clock().UTC()
	if result != nil {
		r := *result
		row.Result = &r
	}
	return nil
}
