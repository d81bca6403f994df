package recurrence

import (
	"testing"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parentTask(rule models.Recurrence, dueDate string) models.Task {
	return models.Task{
		ID:                uuid.Must(uuid.NewV4()),
		UserID:            uuid.Must(uuid.NewV4()),
		Title:             "Standup",
		DueDate:           dueDate,
		DueTime:           "09:00",
		Priority:          models.PriorityHigh,
		Recurrence:        rule,
		IsRecurringParent: true,
		PushNotification:  true,
		NotificationLead:  models.Lead10Min,
	}
}

func TestExpandWeekly(t *testing.T) {
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	parent := parentTask(models.RecurrenceWeekly, "2024-06-03")

	instances, err := Expand(parent, 0, now)
	require.NoError(t, err)
	require.Len(t, instances, 52)

	prev, _ := time.Parse("2006-01-02", parent.DueDate)
	horizon := now.AddDate(1, 0, 0)
	for _, inst := range instances {
		due, err := time.Parse("2006-01-02", inst.DueDate)
		require.NoError(t, err)
		assert.Equal(t, prev.AddDate(0, 0, 7), due, "instances must be exactly one step apart")
		assert.False(t, due.After(horizon), "instance beyond one-year horizon")
		prev = due
	}
	last, _ := time.Parse("2006-01-02", instances[len(instances)-1].DueDate)
	assert.False(t, last.After(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))
}

func TestExpandDailyCap(t *testing.T) {
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	parent := parentTask(models.RecurrenceDaily, "2024-06-03")

	instances, err := Expand(parent, 0, now)
	require.NoError(t, err)
	assert.Len(t, instances, 30)
}

func TestExpandMonthlyCap(t *testing.T) {
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	parent := parentTask(models.RecurrenceMonthly, "2024-06-03")

	instances, err := Expand(parent, 0, now)
	require.NoError(t, err)
	assert.Len(t, instances, 12)
}

func TestExpandHorizonTruncation(t *testing.T) {
	// Parent due far in the past relative to "now": most weekly steps
	// land inside the horizon, but the horizon is measured from now.
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	parent := parentTask(models.RecurrenceWeekly, "2025-05-01")

	instances, err := Expand(parent, 0, now)
	require.NoError(t, err)
	// Only steps up to 2025-06-03 survive.
	require.NotEmpty(t, instances)
	for _, inst := range instances {
		due, _ := time.Parse("2006-01-02", inst.DueDate)
		assert.False(t, due.After(now.AddDate(1, 0, 0)))
	}
	assert.Less(t, len(instances), 52)
}

func TestExpandInheritsParentFields(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	listID := uuid.Must(uuid.NewV4())
	parent := parentTask(models.RecurrenceDaily, "2024-06-03")
	parent.ListID = &listID
	parent.EmailReminder = true

	instances, err := Expand(parent, 5, now)
	require.NoError(t, err)
	require.Len(t, instances, 5)

	for _, inst := range instances {
		assert.Equal(t, parent.Title, inst.Title)
		assert.Equal(t, parent.UserID, inst.UserID)
		assert.Equal(t, parent.ListID, inst.ListID)
		assert.Equal(t, parent.Priority, inst.Priority)
		assert.Equal(t, parent.DueTime, inst.DueTime)
		assert.Equal(t, parent.NotificationLead, inst.NotificationLead)
		assert.True(t, inst.EmailReminder)
		assert.True(t, inst.PushNotification)

		assert.Equal(t, models.RecurrenceNone, inst.Recurrence)
		assert.False(t, inst.IsRecurringParent)
		require.NotNil(t, inst.RecurrenceID)
		assert.Equal(t, parent.ID, *inst.RecurrenceID)
		assert.NotEqual(t, parent.ID, inst.ID)
	}
}

func TestExpandRejectsNonRecurring(t *testing.T) {
	parent := parentTask(models.RecurrenceNone, "2024-06-03")
	parent.IsRecurringParent = false

	_, err := Expand(parent, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotRecurring)
}

func TestDueForStepMonthlyClampsPerTargetMonth(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	// 2024 is a leap year. Each step is measured from the anchor, so a
	// clamped February does not drag later months down to the 29th.
	expected := []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, want := range expected {
		got, err := DueForStep(jan31, models.RecurrenceMonthly, i+1)
		require.NoError(t, err)
		assert.Equal(t, want, got, "step %d", i+1)
	}
}

func TestExpandMonthlyFromMonthEnd(t *testing.T) {
	now := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	parent := parentTask(models.RecurrenceMonthly, "2024-01-31")

	instances, err := Expand(parent, 0, now)
	require.NoError(t, err)
	require.Len(t, instances, 12)

	assert.Equal(t, "2024-02-29", instances[0].DueDate)
	assert.Equal(t, "2024-03-31", instances[1].DueDate)
	assert.Equal(t, "2024-04-30", instances[2].DueDate)
	assert.Equal(t, "2024-12-31", instances[10].DueDate)
	assert.Equal(t, "2025-01-31", instances[11].DueDate)
}

func TestNextAfter(t *testing.T) {
	inst := parentTask(models.RecurrenceNone, "2024-06-10")
	inst.IsRecurringParent = false

	next, err := NextAfter(inst, "2024-06-03", models.RecurrenceWeekly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), next)

	_, err = NextAfter(inst, "2024-06-03", models.RecurrenceNone)
	assert.ErrorIs(t, err, ErrNotRecurring)
}

func TestNextAfterMonthlyStaysOnAnchorDay(t *testing.T) {
	// Completing the clamped February instance of a Jan 31 series must
	// yield Mar 31, not Mar 29.
	inst := parentTask(models.RecurrenceNone, "2024-02-29")
	inst.IsRecurringParent = false

	next, err := NextAfter(inst, "2024-01-31", models.RecurrenceMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), next)
}
