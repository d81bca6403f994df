package handlers

import (
	"log"
	"net/http"
	"time"

	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// emailSyncTolerance is wider than the push scan window: queued email
// reminders arrive through client sync and absorb its latency.
const emailSyncTolerance = 5 * time.Minute

type EmailSyncHandler struct {
	db     *gorm.DB
	mailer notify.Mailer
	loc    *time.Location
}

func NewEmailSyncHandler(db *gorm.DB, mailer notify.Mailer, loc *time.Location) *EmailSyncHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EmailSyncHandler{db: db, mailer: mailer, loc: loc}
}

// SyncEmails accepts a client's queued email reminders and dispatches
// the ones that still qualify. Every entry is re-validated against the
// server's copy of the task: not completed, flag still set, fire time
// within tolerance of now.
func (h *EmailSyncHandler) SyncEmails(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var body struct {
		EmailQueue []struct {
			TaskID        uuid.UUID   `json:"taskId" binding:"required"`
			ScheduledTime time.Time   `json:"scheduledTime"`
			TaskData      models.Task `json:"taskData"`
		} `json:"emailQueue" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	processed := 0
	sent := 0
	var errs []gin.H
	now := time.Now()

	for _, entry := range body.EmailQueue {
		processed++

		var task models.Task
		if err := h.db.Where("id = ? AND user_id = ?", entry.TaskID, userID).First(&task).Error; err != nil {
			errs = append(errs, gin.H{"taskId": entry.TaskID, "error": "task not found"})
			continue
		}
		if task.Completed || !task.EmailReminder {
			continue
		}
		fireAt, err := task.ReminderFireAt(h.loc)
		if err != nil {
			errs = append(errs, gin.H{"taskId": entry.TaskID, "error": err.Error()})
			continue
		}
		diff := fireAt.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff > emailSyncTolerance {
			continue
		}

		subject, bodyText := notify.RenderEmail(task)
		if err := h.mailer.Send(c.Request.Context(), user.Email, subject, bodyText); err != nil {
			log.Printf("email sync: send for task %s: %v", task.ID, err)
			errs = append(errs, gin.H{"taskId": entry.TaskID, "error": err.Error()})
			continue
		}
		sent++
	}

	if errs == nil {
		errs = []gin.H{}
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
		"errors":    errs,
		"sent":      sent,
	})
}
