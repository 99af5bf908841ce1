package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain text", input: "Summarize this doc", want: "Summarize this doc"},
		{name: "surrounding whitespace", input: "  write tests \n", want: "write tests"},
		{name: "empty", input: "", wantErr: ErrEmptyDescription},
		{name: "whitespace only", input: " \t\n ", wantErr: ErrEmptyDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDescription(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, TaskStatus("canceled").Valid())
	assert.False(t, TaskStatus("").Valid())

	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusRunning.Terminal())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrEmptyDescription))
	assert.True(t, IsValidation(fmt.Errorf("submit: %w", ErrNoSession)))
	assert.False(t, IsValidation(ErrTaskNotFound))
	assert.False(t, IsValidation(errors.New("connection refused")))
}
