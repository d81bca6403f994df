// Package events carries the closed set of commands and notifications
// exchanged between the sync engine, the reminder scheduler, and the
// UI layer. Payloads are structured; there is no string-tagged
// dispatch.
package events

import (
	"sync"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
)

type Type string

const (
	TypeScheduleReminder Type = "schedule_reminder"
	TypeCancelReminder   Type = "cancel_reminder"
	TypeSyncRequested    Type = "sync_requested"
	TypeSyncCompleted    Type = "sync_completed"
	TypeConflictDetected Type = "conflict_detected"
	TypeReminderFired    Type = "reminder_fired"
)

type ScheduleReminder struct {
	Task models.Task
}

func (ScheduleReminder) EventType() Type { return TypeScheduleReminder }

type CancelReminder struct {
	TaskID uuid.UUID
}

func (CancelReminder) EventType() Type { return TypeCancelReminder }

type SyncRequested struct {
	Reason string
}

func (SyncRequested) EventType() Type { return TypeSyncRequested }

type SyncCompleted struct {
	Processed int
	Dropped   int
	Conflicts int
}

func (SyncCompleted) EventType() Type { return TypeSyncCompleted }

type ConflictDetected struct {
	EntityID        uuid.UUID
	EntityType      models.EntityType
	Reason          string
	ServerTimestamp time.Time
	ClientTimestamp time.Time
}

func (ConflictDetected) EventType() Type { return TypeConflictDetected }

type ReminderFired struct {
	TaskID uuid.UUID
	Title  string
	Body   string
}

func (ReminderFired) EventType() Type { return TypeReminderFired }

type Event interface {
	EventType() Type
}

type Handler func(Event)

// Bus is a small synchronous fan-out bus. Publish runs every handler
// subscribed to the event's type on the caller's goroutine, matching
// the single-threaded cooperative model of the client.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subscribed := make([]Handler, len(b.handlers[e.EventType()]))
	copy(subscribed, b.handlers[e.EventType()])
	b.mu.RUnlock()

	for _, h := range subscribed {
		h(e)
	}
}
