package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username string    `json:"username" gorm:"unique;not null"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks     []Task     `json:"tasks,omitempty" gorm:"foreignKey:UserID"`
	TaskLists []TaskList `json:"task_lists,omitempty" gorm:"foreignKey:UserID"`
}

// PushSubscription is one registered push delivery endpoint for a user.
// A delivery failure signalling the endpoint is permanently gone
// removes the registration; transient failures do not.
type PushSubscription struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Endpoint string    `json:"endpoint" gorm:"not null"`
	P256dh   string    `json:"p256dh"`
	Auth     string    `json:"auth"`

	CreatedAt time.Time `json:"created_at"`
}
