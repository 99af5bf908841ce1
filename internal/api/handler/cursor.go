package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/task-tracker/internal/api/storage"
	"github.com/google/uuid"
)

// DecodeTaskCursor parses an opaque page cursor. An empty string means the
// first page.
func DecodeTaskCursor(cursorStr string) (*storage.TaskCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdPart, idPart, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(createdPart, "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	if _, err := uuid.Parse(idPart); err != nil {
		return nil, fmt.Errorf("invalid task id in cursor: %w", err)
	}

	return &storage.TaskCursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		TaskID:    idPart,
	}, nil
}

func EncodeTaskCursor(cursor *storage.TaskCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.TaskID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
