package handlers

import (
	"net/http"

	"task-reminder/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SyncHandler struct {
	db          *gorm.DB
	syncService services.SyncService
}

func NewSyncHandler(db *gorm.DB, syncService services.SyncService) *SyncHandler {
	return &SyncHandler{db: db, syncService: syncService}
}

// Sync applies a batch of queued client mutations. Per-change errors
// and conflicts come back in the body; the endpoint itself only fails
// on malformed requests.
func (h *SyncHandler) Sync(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var body struct {
		Changes []services.Change `json:"changes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.syncService.ProcessChanges(h.db, userID, body.Changes)
	c.JSON(http.StatusOK, gin.H{
		"processed": result.Processed,
		"errors":    result.Errors,
		"conflicts": result.Conflicts,
	})
}
