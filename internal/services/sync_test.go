package services

import (
	"encoding/json"
	"testing"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncService() *SyncServiceImpl {
	return NewSyncService(NewTaskService(), NewTaskListService())
}

func taskChange(t *testing.T, action models.SyncAction, task models.Task, basis time.Time) Change {
	t.Helper()
	data, err := json.Marshal(task)
	require.NoError(t, err)
	return Change{
		Type:            models.EntityTask,
		Action:          action,
		Data:            data,
		ClientTimestamp: basis,
	}
}

func TestProcessChangesCreates(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService()
	userID := uuid.Must(uuid.NewV4())

	task := models.Task{
		ID:      uuid.Must(uuid.NewV4()),
		Title:   "Created offline",
		DueDate: "2024-06-03",
	}
	result := svc.ProcessChanges(db, userID, []Change{
		taskChange(t, models.ActionCreate, task, time.Now()),
	})

	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Conflicts)

	stored, err := NewTaskService().GetTaskByID(db, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, stored.SyncStatus)
	assert.False(t, stored.OfflineCreated)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestProcessChangesConflictLeavesServerRow(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService()
	userID := uuid.Must(uuid.NewV4())

	existing, _, err := NewTaskService().CreateTask(db, models.Task{
		UserID:  userID,
		Title:   "Server truth",
		DueDate: "2024-06-03",
	})
	require.NoError(t, err)

	// Client basis predates the server's updated_at.
	stale := existing
	stale.Title = "Stale client edit"
	basis := existing.UpdatedAt.Add(-5 * time.Minute)
	stale.UpdatedAt = basis

	result := svc.ProcessChanges(db, userID, []Change{
		taskChange(t, models.ActionUpdate, stale, basis),
	})

	assert.Zero(t, result.Processed)
	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, existing.ID, conflict.ID)
	assert.True(t, conflict.ServerTimestamp.After(conflict.ClientTimestamp))

	stored, err := NewTaskService().GetTaskByID(db, userID, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Server truth", stored.Title, "conflicted write must not touch the server row")
}

func TestProcessChangesUpdateAppliesWhenNotStale(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService()
	userID := uuid.Must(uuid.NewV4())

	existing, _, err := NewTaskService().CreateTask(db, models.Task{
		UserID:  userID,
		Title:   "Before",
		DueDate: "2024-06-03",
	})
	require.NoError(t, err)

	edit := existing
	edit.Title = "After"
	result := svc.ProcessChanges(db, userID, []Change{
		taskChange(t, models.ActionUpdate, edit, time.Now().Add(time.Minute)),
	})

	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Conflicts)

	stored, err := NewTaskService().GetTaskByID(db, userID, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", stored.Title)
}

func TestProcessChangesDeleteAlwaysWins(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService()
	userID := uuid.Must(uuid.NewV4())

	existing, _, err := NewTaskService().CreateTask(db, models.Task{
		UserID:  userID,
		Title:   "Doomed",
		DueDate: "2024-06-03",
	})
	require.NoError(t, err)

	// Ancient basis; delete skips the conflict check entirely.
	result := svc.ProcessChanges(db, userID, []Change{
		taskChange(t, models.ActionDelete, existing, time.Now().Add(-24*time.Hour)),
	})
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Conflicts)

	_, err = NewTaskService().GetTaskByID(db, userID, existing.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an already-gone task still counts as processed.
	result = svc.ProcessChanges(db, userID, []Change{
		taskChange(t, models.ActionDelete, existing, time.Now()),
	})
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)
}

func TestProcessChangesCollectsErrorsPerItem(t *testing.T) {
	db := newTestDB(t)
	svc := newSyncService()
	userID := uuid.Must(uuid.NewV4())

	good := models.Task{ID: uuid.Must(uuid.NewV4()), Title: "Good", DueDate: "2024-06-03"}
	result := svc.ProcessChanges(db, userID, []Change{
		{Type: "bogus", Action: models.ActionCreate, Data: json.RawMessage(`{}`)},
		taskChange(t, models.ActionCreate, good, time.Now()),
	})

	assert.Equal(t, 1, result.Processed, "one bad change must not abort the batch")
	require.Len(t, result.Errors, 1)
}
