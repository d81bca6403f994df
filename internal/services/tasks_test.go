package services

import (
	"testing"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}, &models.TaskList{}))
	return db
}

func weeklyParent(userID uuid.UUID) models.Task {
	return models.Task{
		UserID:           userID,
		Title:            "Standup",
		DueDate:          time.Now().Format("2006-01-02"),
		DueTime:          "09:00",
		Recurrence:       models.RecurrenceWeekly,
		NotificationLead: models.Lead10Min,
		PushNotification: true,
	}
}

func TestCreateRecurringParentExpandsSeries(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	parent, instances, err := svc.CreateTask(db, weeklyParent(userID))
	require.NoError(t, err)

	assert.True(t, parent.IsRecurringParent)
	assert.Nil(t, parent.RecurrenceID)
	require.Len(t, instances, 52)

	prev, _ := time.Parse("2006-01-02", parent.DueDate)
	for _, inst := range instances {
		due, err := time.Parse("2006-01-02", inst.DueDate)
		require.NoError(t, err)
		assert.Equal(t, prev.AddDate(0, 0, 7), due)
		assert.Equal(t, models.RecurrenceNone, inst.Recurrence)
		require.NotNil(t, inst.RecurrenceID)
		assert.Equal(t, parent.ID, *inst.RecurrenceID)
		prev = due
	}

	var count int64
	db.Model(&models.Task{}).Where("user_id = ?", userID).Count(&count)
	assert.Equal(t, int64(53), count, "parent plus 52 instances")
}

func TestDeleteTaskCascadesSeries(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	parent, instances, err := svc.CreateTask(db, weeklyParent(userID))
	require.NoError(t, err)
	require.NotEmpty(t, instances)

	unrelated, _, err := svc.CreateTask(db, models.Task{
		UserID:  userID,
		Title:   "Unrelated",
		DueDate: "2024-06-03",
	})
	require.NoError(t, err)

	// Deleting an instance removes the whole series, parent included.
	require.NoError(t, svc.DeleteTask(db, userID, instances[3].ID))

	var remaining []models.Task
	require.NoError(t, db.Where("user_id = ?", userID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, unrelated.ID, remaining[0].ID)
	_ = parent
}

func TestDeleteTaskScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	owner := uuid.Must(uuid.NewV4())
	intruder := uuid.Must(uuid.NewV4())

	task, _, err := svc.CreateTask(db, models.Task{UserID: owner, Title: "Private", DueDate: "2024-06-03"})
	require.NoError(t, err)

	err = svc.DeleteTask(db, intruder, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetTaskByID(db, owner, task.ID)
	assert.NoError(t, err, "task must survive the forbidden delete")
}

func TestCompletionGeneratesNextInstance(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	// Daily parent due near the horizon edge so expansion stays small
	// is not needed; use a parent with no instances by completing the
	// parent itself.
	parent := weeklyParent(userID)
	parent.Recurrence = models.RecurrenceNone
	created, _, err := svc.CreateTask(db, parent)
	require.NoError(t, err)

	// Hand-build a series of one instance to complete.
	series, instances, err := svc.CreateTask(db, weeklyParent(userID))
	require.NoError(t, err)
	require.NotEmpty(t, instances)
	last := instances[len(instances)-1]

	completed := last
	completed.Completed = true
	_, err = svc.UpdateTask(db, userID, last.ID, completed)
	require.NoError(t, err)

	// The last instance's successor date was beyond the original
	// horizon, so exactly one new instance appears.
	var count int64
	db.Model(&models.Task{}).
		Where("recurrence_id = ?", series.ID).
		Count(&count)
	assert.Equal(t, int64(len(instances)+1), count)

	_ = created
}

func TestCompletionIdempotentWhenSuccessorExists(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	_, instances, err := svc.CreateTask(db, weeklyParent(userID))
	require.NoError(t, err)
	require.Greater(t, len(instances), 2)

	// Complete instance 0; its successor (instance 1) already exists
	// and is uncompleted, so no new row may appear.
	var before int64
	db.Model(&models.Task{}).Count(&before)

	first := instances[0]
	first.Completed = true
	_, err = svc.UpdateTask(db, userID, instances[0].ID, first)
	require.NoError(t, err)

	var after int64
	db.Model(&models.Task{}).Count(&after)
	assert.Equal(t, before, after, "existing uncompleted successor must suppress generation")

	// Completing again (retried event) is also a no-op.
	_, err = svc.UpdateTask(db, userID, instances[0].ID, first)
	require.NoError(t, err)
	db.Model(&models.Task{}).Count(&after)
	assert.Equal(t, before, after)
}

func TestCompletionKeepsMonthEndSeriesOnAnchorDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	parent := weeklyParent(userID)
	parent.Recurrence = models.RecurrenceMonthly
	parent.DueDate = "2024-01-31"
	series, instances, err := svc.CreateTask(db, parent)
	require.NoError(t, err)
	require.NotEmpty(t, instances)
	require.Equal(t, "2024-02-29", instances[0].DueDate)

	// Clear the pre-expanded successor so completing the clamped
	// February instance has to generate it.
	require.NoError(t, db.Delete(&models.Task{}, "id = ?", instances[1].ID).Error)

	completed := instances[0]
	completed.Completed = true
	_, err = svc.UpdateTask(db, userID, instances[0].ID, completed)
	require.NoError(t, err)

	var next models.Task
	err = db.Where("recurrence_id = ? AND completed = ? AND due_date > ?", series.ID, false, "2024-02-29").
		Order("due_date").
		First(&next).Error
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", next.DueDate, "clamped February must not drag the series off the 31st")
}

func TestChangedSince(t *testing.T) {
	db := newTestDB(t)
	svc := NewTaskService()
	userID := uuid.Must(uuid.NewV4())

	old, _, err := svc.CreateTask(db, models.Task{UserID: userID, Title: "Old", DueDate: "2024-06-01"})
	require.NoError(t, err)

	cursor := time.Now().Add(50 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	fresh, _, err := svc.CreateTask(db, models.Task{UserID: userID, Title: "Fresh", DueDate: "2024-06-02"})
	require.NoError(t, err)

	changed, err := svc.ChangedSince(db, userID, cursor)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, fresh.ID, changed[0].ID)
	_ = old
}
