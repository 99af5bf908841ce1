package tracker

import (
	"context"
	"testing"

	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTable_InsertAndList(t *testing.T) {
	ctx := context.Background()
	table := newFakeTable().MemoryTable

	first, err := table.Insert(ctx, "first", "alice")
	require.NoError(t, err)
	second, err := table.Insert(ctx, "  second  ", "alice")
	require.NoError(t, err)
	_, err = table.Insert(ctx, "other", "bob")
	require.NoError(t, err)

	assert.Equal(t, "second", second.Description)
	assert.Equal(t, domain.TaskStatusPending, second.Status)
	assert.Nil(t, second.Result)

	tasks, err := table.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)

	tasks, err = table.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryTable_InsertRejects(t *testing.T) {
	table := NewMemoryTable()

	_, err := table.Insert(context.Background(), " ", "alice")
	assert.ErrorIs(t, err, domain.ErrEmptyDescription)

	_, err = table.Insert(context.Background(), "work", "")
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestMemoryTable_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()

	task, err := table.Insert(ctx, "summarize", "alice")
	require.NoError(t, err)

	result := "done: 3 bullet points"
	require.NoError(t, table.UpdateStatus(task.ID, domain.TaskStatusCompleted, &result))

	tasks, err := table.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusCompleted, tasks[0].Status)
	require.NotNil(t, tasks[0].Result)
	assert.Equal(t, result, *tasks[0].Result)

	assert.ErrorIs(t, table.UpdateStatus(task.ID, domain.TaskStatus("archived"), nil), domain.ErrInvalidStatus)
	assert.ErrorIs(t, table.UpdateStatus("missing", domain.TaskStatusFailed, nil), domain.ErrTaskNotFound)
}
