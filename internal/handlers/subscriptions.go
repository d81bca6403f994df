package handlers

import (
	"errors"
	"net/http"

	"task-reminder/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type SubscriptionHandler struct {
	db *gorm.DB
}

func NewSubscriptionHandler(db *gorm.DB) *SubscriptionHandler {
	return &SubscriptionHandler{db: db}
}

// Subscribe registers a push delivery endpoint for the caller.
// Re-registering the same endpoint replaces the stored keys.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	var input struct {
		Endpoint string `json:"endpoint" binding:"required"`
		P256dh   string `json:"p256dh"`
		Auth     string `json:"auth"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.PushSubscription
	err := h.db.Where("user_id = ? AND endpoint = ?", userID, input.Endpoint).First(&existing).Error
	switch {
	case err == nil:
		existing.P256dh = input.P256dh
		existing.Auth = input.Auth
		if err := h.db.Save(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
			return
		}
		c.JSON(http.StatusOK, existing)
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub := models.PushSubscription{
			ID:       uuid.Must(uuid.NewV4()),
			UserID:   userID,
			Endpoint: input.Endpoint,
			P256dh:   input.P256dh,
			Auth:     input.Auth,
		}
		if err := h.db.Create(&sub).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
			return
		}
		c.JSON(http.StatusCreated, sub)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up subscription"})
	}
}

func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}
	result := h.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.PushSubscription{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
