package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Change is one queued client mutation submitted to the batch sync
// endpoint.
type Change struct {
	Type            models.EntityType `json:"type" binding:"required"`
	Action          models.SyncAction `json:"action" binding:"required"`
	Data            json.RawMessage   `json:"data" binding:"required"`
	ClientTimestamp time.Time         `json:"clientTimestamp"`
}

type ChangeError struct {
	Change Change `json:"change"`
	Error  string `json:"error"`
}

type ChangeConflict struct {
	ID              uuid.UUID         `json:"id"`
	Type            models.EntityType `json:"type"`
	Reason          string            `json:"reason"`
	ServerTimestamp time.Time         `json:"serverTimestamp"`
	ClientTimestamp time.Time         `json:"clientTimestamp"`
}

type SyncResult struct {
	Processed int              `json:"processed"`
	Errors    []ChangeError    `json:"errors"`
	Conflicts []ChangeConflict `json:"conflicts"`
}

type SyncService interface {
	ProcessChanges(db *gorm.DB, userID uuid.UUID, changes []Change) SyncResult
}

type SyncServiceImpl struct {
	tasks TaskService
	lists TaskListService
}

func NewSyncService(tasks TaskService, lists TaskListService) *SyncServiceImpl {
	return &SyncServiceImpl{tasks: tasks, lists: lists}
}

// ProcessChanges applies a client's queued mutations one at a time.
// Failures and conflicts are collected per change; the batch never
// aborts as a whole. Updates are applied only when the server copy is
// not newer than the client's basis; deletes always win.
func (s *SyncServiceImpl) ProcessChanges(db *gorm.DB, userID uuid.UUID, changes []Change) SyncResult {
	result := SyncResult{
		Errors:    []ChangeError{},
		Conflicts: []ChangeConflict{},
	}
	for _, change := range changes {
		conflict, err := s.processChange(db, userID, change)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, ChangeError{Change: change, Error: err.Error()})
			continue
		}
		result.Processed++
	}
	return result
}

func (s *SyncServiceImpl) processChange(db *gorm.DB, userID uuid.UUID, change Change) (*ChangeConflict, error) {
	switch change.Type {
	case models.EntityTask:
		return s.processTaskChange(db, userID, change)
	case models.EntityTaskList:
		return s.processListChange(db, userID, change)
	default:
		return nil, fmt.Errorf("unknown entity type %q", change.Type)
	}
}

func (s *SyncServiceImpl) processTaskChange(db *gorm.DB, userID uuid.UUID, change Change) (*ChangeConflict, error) {
	var task models.Task
	if err := json.Unmarshal(change.Data, &task); err != nil {
		return nil, fmt.Errorf("decode task change: %w", err)
	}
	task.UserID = userID

	switch change.Action {
	case models.ActionCreate:
		_, _, err := s.tasks.CreateTask(db, task)
		return nil, err
	case models.ActionUpdate:
		var current models.Task
		err := db.Where("id = ?", task.ID).First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			if current.UserID != userID {
				return nil, ErrForbidden
			}
			basis := change.ClientTimestamp
			if basis.IsZero() {
				basis = task.UpdatedAt
			}
			if current.UpdatedAt.After(basis) {
				return &ChangeConflict{
					ID:              task.ID,
					Type:            models.EntityTask,
					Reason:          "server copy is newer than client basis",
					ServerTimestamp: current.UpdatedAt,
					ClientTimestamp: basis,
				}, nil
			}
		}
		_, uerr := s.tasks.UpdateTask(db, userID, task.ID, task)
		return nil, uerr
	case models.ActionDelete:
		err := s.tasks.DeleteTask(db, userID, task.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil // already gone, delete wins trivially
		}
		return nil, err
	default:
		return nil, fmt.Errorf("unknown action %q", change.Action)
	}
}

func (s *SyncServiceImpl) processListChange(db *gorm.DB, userID uuid.UUID, change Change) (*ChangeConflict, error) {
	var list models.TaskList
	if err := json.Unmarshal(change.Data, &list); err != nil {
		return nil, fmt.Errorf("decode task list change: %w", err)
	}
	list.UserID = userID

	switch change.Action {
	case models.ActionCreate:
		_, err := s.lists.CreateTaskList(db, list)
		return nil, err
	case models.ActionUpdate:
		var current models.TaskList
		err := db.Where("id = ?", list.ID).First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			if current.UserID != userID {
				return nil, ErrForbidden
			}
			basis := change.ClientTimestamp
			if basis.IsZero() {
				basis = list.UpdatedAt
			}
			if current.UpdatedAt.After(basis) {
				return &ChangeConflict{
					ID:              list.ID,
					Type:            models.EntityTaskList,
					Reason:          "server copy is newer than client basis",
					ServerTimestamp: current.UpdatedAt,
					ClientTimestamp: basis,
				}, nil
			}
		}
		_, uerr := s.lists.UpdateTaskList(db, userID, list.ID, list)
		return nil, uerr
	case models.ActionDelete:
		err := s.lists.DeleteTaskList(db, userID, list.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	default:
		return nil, fmt.Errorf("unknown action %q", change.Action)
	}
}
