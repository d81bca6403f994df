package models

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSynced    ReminderStatus = "synced"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ScheduledReminder is a computed, not-yet-fired reminder for a task.
// It is destroyed when fired, when the task completes or is deleted,
// or when reminder-affecting fields change (cancel-then-reschedule).
type ScheduledReminder struct {
	ID       uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID   uuid.UUID      `json:"task_id" gorm:"type:uuid;not null;index"`
	FireAt   time.Time      `json:"fire_at" gorm:"not null;index"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Status   ReminderStatus `json:"status" gorm:"default:'pending'"`

	CreatedAt time.Time `json:"created_at"`
}

type DeliveryChannel string

const (
	ChannelPush  DeliveryChannel = "push"
	ChannelEmail DeliveryChannel = "email"
)

// ReminderDelivery records that a reminder was delivered for a task in
// a given fire window. The unique tag makes overlapping scan passes
// idempotent: a second match in the same window is a no-op.
type ReminderDelivery struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID      uuid.UUID       `json:"task_id" gorm:"type:uuid;not null"`
	Channel     DeliveryChannel `json:"channel" gorm:"not null"`
	WindowTag   string          `json:"window_tag" gorm:"uniqueIndex;not null"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// DeliveryTag buckets a fire time to the minute so every scan pass that
// matches the same task/window computes the same tag.
func DeliveryTag(taskID uuid.UUID, channel DeliveryChannel, fireAt time.Time) string {
	return fmt.Sprintf("%s:%s:%s", taskID, channel, fireAt.UTC().Truncate(time.Minute).Format("200601021504"))
}
