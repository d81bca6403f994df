package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type TaskList struct {
	ID     uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Name   string    `json:"name" gorm:"not null"`

	SyncStatus SyncStatus `json:"sync_status" gorm:"default:'synced';index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
