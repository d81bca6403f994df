package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/recurrence"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskService interface {
	CreateTask(db *gorm.DB, task models.Task) (models.Task, []models.Task, error)
	GetTaskByID(db *gorm.DB, userID, id uuid.UUID) (models.Task, error)
	GetTasksByUser(db *gorm.DB, userID uuid.UUID) ([]models.Task, error)
	UpdateTask(db *gorm.DB, userID, id uuid.UUID, updated models.Task) (models.Task, error)
	DeleteTask(db *gorm.DB, userID, id uuid.UUID) error
	ChangedSince(db *gorm.DB, userID uuid.UUID, since time.Time) ([]models.Task, error)
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

// CreateTask stores the task and, for a recurring parent, expands the
// series server-side. Returns the stored parent and any instances.
func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task models.Task) (models.Task, []models.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.Must(uuid.NewV4())
	}
	if task.Recurrence != models.RecurrenceNone {
		task.IsRecurringParent = true
	}
	if err := task.ValidateRecurrence(); err != nil {
		return models.Task{}, nil, err
	}
	task.SyncStatus = models.SyncStatusSynced
	task.OfflineCreated = false

	if err := db.Create(&task).Error; err != nil {
		return models.Task{}, nil, fmt.Errorf("create task: %w", err)
	}

	var instances []models.Task
	if task.Recurrence != models.RecurrenceNone {
		expanded, err := recurrence.Expand(task, 0, time.Now())
		if err != nil {
			return models.Task{}, nil, fmt.Errorf("expand recurring task %s: %w", task.ID, err)
		}
		for i := range expanded {
			expanded[i].SyncStatus = models.SyncStatusSynced
		}
		if len(expanded) > 0 {
			if err := db.Create(&expanded).Error; err != nil {
				return models.Task{}, nil, fmt.Errorf("store recurrence instances for %s: %w", task.ID, err)
			}
		}
		instances = expanded
	}
	return task, instances, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, userID, id uuid.UUID) (models.Task, error) {
	var task models.Task
	if err := db.Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	if task.UserID != userID {
		return models.Task{}, ErrForbidden
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTasksByUser(db *gorm.DB, userID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Where("user_id = ?", userID).Order("due_date, due_time").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask applies the caller's fields and, when the update marks a
// task completed, advances its recurrence series by one instance.
func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, userID, id uuid.UUID, updated models.Task) (models.Task, error) {
	current, err := s.GetTaskByID(db, userID, id)
	if err != nil {
		return models.Task{}, err
	}

	wasCompleted := current.Completed

	updated.ID = current.ID
	updated.UserID = current.UserID
	updated.CreatedAt = current.CreatedAt
	updated.SyncStatus = models.SyncStatusSynced
	if err := db.Save(&updated).Error; err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}

	if updated.Completed && !wasCompleted {
		if err := s.generateNextInstance(db, updated); err != nil {
			// Best-effort: the completion itself stands.
			log.Printf("tasks: generate next instance for %s: %v", id, err)
		}
	}
	return updated, nil
}

// generateNextInstance creates exactly the next occurrence of the
// completed task's series, unless an uncompleted instance already
// occupies the computed date. The existence check makes retried or
// concurrent completions idempotent.
func (s *TaskServiceImpl) generateNextInstance(db *gorm.DB, completed models.Task) error {
	rule := completed.Recurrence
	parentID := completed.ID
	anchorDate := completed.DueDate
	if completed.RecurrenceID != nil {
		parentID = *completed.RecurrenceID
		var parent models.Task
		if err := db.Where("id = ?", parentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // orphaned instance, series is gone
			}
			return err
		}
		rule = parent.Recurrence
		anchorDate = parent.DueDate
	}
	if rule == models.RecurrenceNone {
		return nil
	}

	nextDue, err := recurrence.NextAfter(completed, anchorDate, rule)
	if err != nil {
		return err
	}
	nextDate := nextDue.Format("2006-01-02")

	var occupied int64
	err = db.Model(&models.Task{}).
		Where("(id = ? OR recurrence_id = ?) AND due_date = ? AND completed = ?", parentID, parentID, nextDate, false).
		Count(&occupied).Error
	if err != nil {
		return err
	}
	if occupied > 0 {
		return nil
	}

	next := recurrence.Instantiate(completed, nextDue)
	next.RecurrenceID = &parentID
	next.SyncStatus = models.SyncStatusSynced
	return db.Create(&next).Error
}

// DeleteTask removes the whole recurrence series the task belongs to:
// the parent row plus every instance referencing it. For a plain task
// the series is just itself.
func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, userID, id uuid.UUID) error {
	task, err := s.GetTaskByID(db, userID, id)
	if err != nil {
		return err
	}
	seriesID := task.SeriesID()
	return db.Where("id = ? OR recurrence_id = ?", seriesID, seriesID).Delete(&models.Task{}).Error
}

// ChangedSince is the poll-based change feed: rows touched after the
// cursor, deletions excluded (clients reconcile those on full sync).
func (s *TaskServiceImpl) ChangedSince(db *gorm.DB, userID uuid.UUID, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("user_id = ? AND updated_at > ?", userID, since).
		Order("updated_at").
		Find(&tasks).Error
	return tasks, err
}
