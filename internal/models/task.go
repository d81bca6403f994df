package models

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// SyncStatus is client-side bookkeeping; the server only ever stores
// synced rows.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusUpdated SyncStatus = "updated"
	SyncStatusDeleted SyncStatus = "deleted"
)

// NotificationLead is the configured interval before the due moment at
// which a reminder fires. The set is closed; anything else is rejected
// at validation time.
type NotificationLead string

const (
	Lead3Min   NotificationLead = "3min"
	Lead5Min   NotificationLead = "5min"
	Lead10Min  NotificationLead = "10min"
	Lead15Min  NotificationLead = "15min"
	Lead20Min  NotificationLead = "20min"
	Lead25Min  NotificationLead = "25min"
	Lead30Min  NotificationLead = "30min"
	Lead45Min  NotificationLead = "45min"
	Lead50Min  NotificationLead = "50min"
	Lead1Hour  NotificationLead = "1hour"
	Lead2Hours NotificationLead = "2hours"
	Lead1Day   NotificationLead = "1day"
)

var leadDurations = map[NotificationLead]time.Duration{
	Lead3Min:   3 * time.Minute,
	Lead5Min:   5 * time.Minute,
	Lead10Min:  10 * time.Minute,
	Lead15Min:  15 * time.Minute,
	Lead20Min:  20 * time.Minute,
	Lead25Min:  25 * time.Minute,
	Lead30Min:  30 * time.Minute,
	Lead45Min:  45 * time.Minute,
	Lead50Min:  50 * time.Minute,
	Lead1Hour:  time.Hour,
	Lead2Hours: 2 * time.Hour,
	Lead1Day:   24 * time.Hour,
}

// Duration maps the lead setting to a concrete interval. Unknown values
// fall back to 10 minutes rather than failing the reminder outright.
func (l NotificationLead) Duration() time.Duration {
	if d, ok := leadDurations[l]; ok {
		return d
	}
	return 10 * time.Minute
}

func (l NotificationLead) Valid() bool {
	_, ok := leadDurations[l]
	return ok
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	ListID      *uuid.UUID `json:"list_id,omitempty" gorm:"type:uuid;index"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	DueDate     string     `json:"due_date" gorm:"not null"`        // YYYY-MM-DD
	DueTime     string     `json:"due_time" gorm:"default:'09:00'"` // HH:MM local
	Priority    Priority   `json:"priority" gorm:"default:'medium'"`
	Completed   bool       `json:"completed" gorm:"default:false;index"`

	EmailReminder    bool             `json:"email_reminder" gorm:"default:false"`
	PushNotification bool             `json:"push_notification" gorm:"default:false"`
	NotificationLead NotificationLead `json:"notification_lead" gorm:"default:'10min'"`

	Recurrence        Recurrence `json:"recurrence" gorm:"default:'none'"`
	RecurrenceID      *uuid.UUID `json:"recurrence_id,omitempty" gorm:"type:uuid;index"`
	IsRecurringParent bool       `json:"is_recurring_parent" gorm:"default:false"`

	SyncStatus     SyncStatus `json:"sync_status" gorm:"default:'synced';index"`
	OfflineCreated bool       `json:"offline_created" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DueAt combines the calendar date and local time-of-day into an
// absolute moment in the given location.
func (t *Task) DueAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", t.DueDate+" "+t.DueTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("task %s has malformed due date/time %q %q: %w", t.ID, t.DueDate, t.DueTime, err)
	}
	return due, nil
}

// ReminderFireAt is the moment a reminder for this task should fire:
// the due moment minus the configured lead.
func (t *Task) ReminderFireAt(loc *time.Location) (time.Time, error) {
	due, err := t.DueAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return due.Add(-t.NotificationLead.Duration()), nil
}

// SeriesID resolves the id identifying this task's recurrence series:
// the parent's own id, or the instance's back-reference.
func (t *Task) SeriesID() uuid.UUID {
	if t.RecurrenceID != nil {
		return *t.RecurrenceID
	}
	return t.ID
}

// ValidateRecurrence enforces the parent/instance shape: a recurring
// task is always a parent with no back-reference, and an instance is
// never itself recurring.
func (t *Task) ValidateRecurrence() error {
	if t.Recurrence != RecurrenceNone {
		if !t.IsRecurringParent {
			return fmt.Errorf("task %s: recurrence %q requires is_recurring_parent", t.ID, t.Recurrence)
		}
		if t.RecurrenceID != nil {
			return fmt.Errorf("task %s: recurring parent must not reference another series", t.ID)
		}
	}
	return nil
}
