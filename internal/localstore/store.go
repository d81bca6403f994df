// Package localstore is the client-side durable store: tasks, lists,
// the sync queue, and scheduled reminders, persisted across restarts.
// It is the single source of truth for what the user sees; syncing and
// scheduling are driven by callers, never triggered from here.
package localstore

import (
	"context"
	"fmt"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the store at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Task{},
		&models.TaskList{},
		&models.SyncQueueEntry{},
		&models.ScheduledReminder{},
	); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetTasks returns the user's tasks, hiding soft-deleted rows. Callers
// never see sync_status=deleted.
func (s *Store) GetTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND sync_status <> ?", userID, models.SyncStatusDeleted).
		Order("due_date, due_time").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND sync_status <> ?", id, models.SyncStatusDeleted).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// SaveTask upserts by id.
func (s *Store) SaveTask(ctx context.Context, task *models.Task) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(task).Error
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// MarkTaskDeleted soft-deletes: the row stays for the sync drain but
// disappears from reads.
func (s *Store) MarkTaskDeleted(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Update("sync_status", models.SyncStatusDeleted).Error
}

// DeleteTask removes the row outright, used after the server confirms.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{}).Error
}

// DeleteSeries removes every task belonging to a recurrence series:
// the parent row plus all instances referencing it.
func (s *Store) DeleteSeries(ctx context.Context, seriesID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("id = ? OR recurrence_id = ?", seriesID, seriesID).
		Delete(&models.Task{}).Error
}

// SeriesTasks returns all live tasks in a series, parent included.
func (s *Store) SeriesTasks(ctx context.Context, seriesID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("(id = ? OR recurrence_id = ?) AND sync_status <> ?", seriesID, seriesID, models.SyncStatusDeleted).
		Find(&tasks).Error
	return tasks, err
}

func (s *Store) GetTaskLists(ctx context.Context, userID uuid.UUID) ([]models.TaskList, error) {
	var lists []models.TaskList
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND sync_status <> ?", userID, models.SyncStatusDeleted).
		Order("name").
		Find(&lists).Error
	if err != nil {
		return nil, fmt.Errorf("get task lists: %w", err)
	}
	return lists, nil
}

func (s *Store) SaveTaskList(ctx context.Context, list *models.TaskList) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(list).Error
	if err != nil {
		return fmt.Errorf("save task list %s: %w", list.ID, err)
	}
	return nil
}

func (s *Store) MarkTaskListDeleted(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.TaskList{}).
		Where("id = ?", id).
		Update("sync_status", models.SyncStatusDeleted).Error
}

func (s *Store) DeleteTaskList(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TaskList{}).Error
}

// AddToSyncQueue appends a fresh entry with retry=0. Existing entries
// are never mutated here; retries go through IncrementRetry.
func (s *Store) AddToSyncQueue(ctx context.Context, entityType models.EntityType, action models.SyncAction, entityID uuid.UUID, payload []byte) (*models.SyncQueueEntry, error) {
	entry := &models.SyncQueueEntry{
		ID:         uuid.Must(uuid.NewV4()),
		EntityType: entityType,
		Action:     action,
		EntityID:   entityID,
		Payload:    payload,
		RetryCount: 0,
		EnqueuedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("enqueue %s %s: %w", action, entityID, err)
	}
	return entry, nil
}

// PendingQueue returns all queue entries in enqueue (FIFO) order.
func (s *Store) PendingQueue(ctx context.Context) ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	err := s.db.WithContext(ctx).Order("enqueued_at").Find(&entries).Error
	return entries, err
}

func (s *Store) RemoveQueueEntry(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SyncQueueEntry{}).Error
}

// IncrementRetry bumps the entry's retry counter and returns the new
// count.
func (s *Store) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	var entry models.SyncQueueEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return 0, err
	}
	entry.RetryCount++
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return 0, err
	}
	return entry.RetryCount, nil
}

func (s *Store) SaveReminder(ctx context.Context, reminder *models.ScheduledReminder) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(reminder).Error
}

func (s *Store) RemoveRemindersForTask(ctx context.Context, taskID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.ScheduledReminder{}).Error
}

func (s *Store) RemindersForTask(ctx context.Context, taskID uuid.UUID) ([]models.ScheduledReminder, error) {
	var reminders []models.ScheduledReminder
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Find(&reminders).Error
	return reminders, err
}
