// Package scheduler owns reminder timing on both sides of the sync
// boundary: a client half that arms local timers for immediacy, and a
// server half that scans for due reminders and fans out deliveries for
// durability across client restarts.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"task-reminder/backend/internal/events"
	"task-reminder/backend/internal/localstore"
	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/notify"

	"github.com/gofrs/uuid"
)

// Notifier shows a fired reminder to the user.
type Notifier interface {
	Notify(payload notify.PushPayload)
}

// ReminderScheduler is the client half: one pending timer per task id,
// owned explicitly rather than through ambient global state. Its
// lifetime is the process lifetime.
type ReminderScheduler struct {
	mu       sync.Mutex
	timers   map[uuid.UUID]*time.Timer
	store    *localstore.Store
	notifier Notifier
	bus      *events.Bus
	loc      *time.Location
	now      func() time.Time
}

func NewReminderScheduler(store *localstore.Store, notifier Notifier, bus *events.Bus, loc *time.Location) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &ReminderScheduler{
		timers:   make(map[uuid.UUID]*time.Timer),
		store:    store,
		notifier: notifier,
		bus:      bus,
		loc:      loc,
		now:      time.Now,
	}
	if bus != nil {
		bus.Subscribe(events.TypeScheduleReminder, func(e events.Event) {
			s.Schedule(context.Background(), e.(events.ScheduleReminder).Task)
		})
		bus.Subscribe(events.TypeCancelReminder, func(e events.Event) {
			s.Cancel(context.Background(), e.(events.CancelReminder).TaskID)
		})
	}
	return s
}

// Schedule arms a timer for the task's reminder. Any previously armed
// timer for the same task id is cancelled first, so a stale callback
// can never fire for old settings. Tasks whose fire time has already
// passed are skipped, not fired late.
func (s *ReminderScheduler) Schedule(ctx context.Context, task models.Task) error {
	s.Cancel(ctx, task.ID)

	if !task.PushNotification || task.Completed {
		return nil
	}

	fireAt, err := task.ReminderFireAt(s.loc)
	if err != nil {
		return err
	}

	now := s.now()
	if !fireAt.After(now) {
		log.Printf("reminder: fire time %s for task %s already passed, skipping", fireAt.Format(time.RFC3339), task.ID)
		return nil
	}

	return s.scheduleAt(ctx, task, fireAt, now)
}

func (s *ReminderScheduler) scheduleAt(ctx context.Context, task models.Task, fireAt time.Time, now time.Time) error {
	reminder := &models.ScheduledReminder{
		ID:     uuid.Must(uuid.NewV4()),
		TaskID: task.ID,
		FireAt: fireAt,
		Title:  "Task Reminder",
		Body:   fmt.Sprintf("%s is due at %s", task.Title, task.DueTime),
		Status: models.ReminderPending,
	}
	if err := s.store.SaveReminder(ctx, reminder); err != nil {
		// Best-effort persistence; the timer still arms.
		log.Printf("reminder: persist reminder for task %s: %v", task.ID, err)
	}

	s.mu.Lock()
	s.timers[task.ID] = time.AfterFunc(fireAt.Sub(now), func() {
		s.fire(task)
	})
	s.mu.Unlock()
	return nil
}

// Cancel disarms any pending timer for the task and removes its stored
// reminder record.
func (s *ReminderScheduler) Cancel(ctx context.Context, taskID uuid.UUID) {
	s.mu.Lock()
	if timer, ok := s.timers[taskID]; ok {
		timer.Stop()
		delete(s.timers, taskID)
	}
	s.mu.Unlock()

	if err := s.store.RemoveRemindersForTask(ctx, taskID); err != nil {
		log.Printf("reminder: remove reminders for task %s: %v", taskID, err)
	}
}

// Snooze re-arms the task's reminder N minutes from now, bypassing the
// due-time computation. Equivalent to cancel-then-schedule.
func (s *ReminderScheduler) Snooze(ctx context.Context, task models.Task, d time.Duration) error {
	s.Cancel(ctx, task.ID)
	now := s.now()
	return s.scheduleAt(ctx, task, now.Add(d), now)
}

// ScheduleAll re-derives timers for every loadable task, used at
// startup after the client restarts.
func (s *ReminderScheduler) ScheduleAll(ctx context.Context, userID uuid.UUID) error {
	tasks, err := s.store.GetTasks(ctx, userID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.Schedule(ctx, task); err != nil {
			log.Printf("reminder: schedule task %s: %v", task.ID, err)
		}
	}
	return nil
}

// Pending reports whether a timer is currently armed for the task.
func (s *ReminderScheduler) Pending(taskID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[taskID]
	return ok
}

func (s *ReminderScheduler) fire(task models.Task) {
	s.mu.Lock()
	delete(s.timers, task.ID)
	s.mu.Unlock()

	payload := notify.RenderPush(task)
	if s.notifier != nil {
		s.notifier.Notify(payload)
	}
	if s.bus != nil {
		s.bus.Publish(events.ReminderFired{TaskID: task.ID, Title: payload.Title, Body: payload.Body})
	}
	if err := s.store.RemoveRemindersForTask(context.Background(), task.ID); err != nil {
		log.Printf("reminder: clear fired reminder for task %s: %v", task.ID, err)
	}
}
