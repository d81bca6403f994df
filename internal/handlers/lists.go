package handlers

import (
	"net/http"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskListHandler struct {
	db          *gorm.DB
	listService services.TaskListService
}

func NewTaskListHandler(db *gorm.DB, listService services.TaskListService) *TaskListHandler {
	return &TaskListHandler{db: db, listService: listService}
}

func (h *TaskListHandler) CreateTaskList(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.listService.CreateTaskList(h.db, models.TaskList{
		UserID: userID,
		Name:   input.Name,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task list"})
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (h *TaskListHandler) GetTaskLists(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	lists, err := h.listService.GetTaskListsByUser(h.db, userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_lists": lists})
}

func (h *TaskListHandler) UpdateTaskList(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid list id"})
		return
	}
	var list models.TaskList
	if err := c.ShouldBindJSON(&list); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.listService.UpdateTaskList(h.db, userID, id, list)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTaskList removes the list and every task belonging to it.
func (h *TaskListHandler) DeleteTaskList(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid list id"})
		return
	}
	if err := h.listService.DeleteTaskList(h.db, userID, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
