package services

import (
	"errors"
	"fmt"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskListService interface {
	CreateTaskList(db *gorm.DB, list models.TaskList) (models.TaskList, error)
	GetTaskListByID(db *gorm.DB, userID, id uuid.UUID) (models.TaskList, error)
	GetTaskListsByUser(db *gorm.DB, userID uuid.UUID) ([]models.TaskList, error)
	UpdateTaskList(db *gorm.DB, userID, id uuid.UUID, updated models.TaskList) (models.TaskList, error)
	DeleteTaskList(db *gorm.DB, userID, id uuid.UUID) error
}

type TaskListServiceImpl struct{}

func NewTaskListService() *TaskListServiceImpl {
	return &TaskListServiceImpl{}
}

func (s *TaskListServiceImpl) CreateTaskList(db *gorm.DB, list models.TaskList) (models.TaskList, error) {
	if list.ID == uuid.Nil {
		list.ID = uuid.Must(uuid.NewV4())
	}
	list.SyncStatus = models.SyncStatusSynced
	if err := db.Create(&list).Error; err != nil {
		return models.TaskList{}, fmt.Errorf("create task list: %w", err)
	}
	return list, nil
}

func (s *TaskListServiceImpl) GetTaskListByID(db *gorm.DB, userID, id uuid.UUID) (models.TaskList, error) {
	var list models.TaskList
	if err := db.Where("id = ?", id).First(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TaskList{}, ErrNotFound
		}
		return models.TaskList{}, err
	}
	if list.UserID != userID {
		return models.TaskList{}, ErrForbidden
	}
	return list, nil
}

func (s *TaskListServiceImpl) GetTaskListsByUser(db *gorm.DB, userID uuid.UUID) ([]models.TaskList, error) {
	var lists []models.TaskList
	if err := db.Where("user_id = ?", userID).Order("name").Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

func (s *TaskListServiceImpl) UpdateTaskList(db *gorm.DB, userID, id uuid.UUID, updated models.TaskList) (models.TaskList, error) {
	current, err := s.GetTaskListByID(db, userID, id)
	if err != nil {
		return models.TaskList{}, err
	}
	updated.ID = current.ID
	updated.UserID = current.UserID
	updated.CreatedAt = current.CreatedAt
	updated.SyncStatus = models.SyncStatusSynced
	if err := db.Save(&updated).Error; err != nil {
		return models.TaskList{}, fmt.Errorf("update task list %s: %w", id, err)
	}
	return updated, nil
}

// DeleteTaskList removes the list and cascades to its member tasks.
func (s *TaskListServiceImpl) DeleteTaskList(db *gorm.DB, userID, id uuid.UUID) error {
	if _, err := s.GetTaskListByID(db, userID, id); err != nil {
		return err
	}
	if err := db.Where("list_id = ?", id).Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("cascade list tasks: %w", err)
	}
	return db.Where("id = ?", id).Delete(&models.TaskList{}).Error
}
