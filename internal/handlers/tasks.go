package handlers

import (
	"errors"
	"net/http"
	"time"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService}
}

// requestUserID pulls the owner id the auth middleware stored.
func requestUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	idStr, ok := raw.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var taskInput struct {
		Title            string                  `json:"title" binding:"required"`
		Description      string                  `json:"description"`
		DueDate          string                  `json:"due_date" binding:"required"`
		DueTime          string                  `json:"due_time"`
		Priority         models.Priority         `json:"priority"`
		ListID           *uuid.UUID              `json:"list_id"`
		EmailReminder    bool                    `json:"email_reminder"`
		PushNotification bool                    `json:"push_notification"`
		NotificationLead models.NotificationLead `json:"notification_lead"`
		Recurrence       models.Recurrence       `json:"recurrence"`
	}
	if err := c.ShouldBindJSON(&taskInput); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if taskInput.Priority == "" {
		taskInput.Priority = models.PriorityMedium
	}
	if taskInput.DueTime == "" {
		taskInput.DueTime = "09:00"
	}
	if taskInput.NotificationLead == "" {
		taskInput.NotificationLead = models.Lead10Min
	}
	if !taskInput.NotificationLead.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown notification lead"})
		return
	}
	if taskInput.Recurrence == "" {
		taskInput.Recurrence = models.RecurrenceNone
	}

	task := models.Task{
		UserID:           userID,
		Title:            taskInput.Title,
		Description:      taskInput.Description,
		DueDate:          taskInput.DueDate,
		DueTime:          taskInput.DueTime,
		Priority:         taskInput.Priority,
		ListID:           taskInput.ListID,
		EmailReminder:    taskInput.EmailReminder,
		PushNotification: taskInput.PushNotification,
		NotificationLead: taskInput.NotificationLead,
		Recurrence:       taskInput.Recurrence,
	}

	created, instances, err := h.taskService.CreateTask(h.db, task)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to create task",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"task":      created,
		"instances": instances,
	})
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.GetTasksByUser(h.db, userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// GetChangedTasks is the poll-based change feed: tasks touched after
// the updated_since cursor.
func (h *TaskHandler) GetChangedTasks(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	since, err := time.Parse(time.RFC3339, c.Query("updated_since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "updated_since must be RFC3339"})
		return
	}
	tasks, err := h.taskService.ChangedSince(h.db, userID, since)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	task, err := h.taskService.GetTaskByID(h.db, userID, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.taskService.UpdateTask(h.db, userID, id, task)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTask deletes a task; for any member of a recurrence series the
// whole series goes.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	if err := h.taskService.DeleteTask(h.db, userID, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
