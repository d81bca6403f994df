package models

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type EntityType string

const (
	EntityTask     EntityType = "task"
	EntityTaskList EntityType = "task_list"
)

type SyncAction string

const (
	ActionCreate SyncAction = "create"
	ActionUpdate SyncAction = "update"
	ActionDelete SyncAction = "delete"
)

// MaxSyncRetries is the drain retry ceiling. An entry that fails this
// many times is dropped with a logged warning, never retried again.
const MaxSyncRetries = 3

// SyncQueueEntry is one not-yet-acknowledged local mutation awaiting
// application to the server of record.
type SyncQueueEntry struct {
	ID         uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	EntityType EntityType      `json:"entity_type" gorm:"not null"`
	Action     SyncAction      `json:"action" gorm:"not null"`
	EntityID   uuid.UUID       `json:"entity_id" gorm:"type:uuid;not null;index"`
	Payload    json.RawMessage `json:"payload" gorm:"type:text"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	EnqueuedAt time.Time       `json:"enqueued_at" gorm:"index"`
}

func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// Exhausted reports whether this entry has hit the retry ceiling.
func (e *SyncQueueEntry) Exhausted() bool {
	return e.RetryCount >= MaxSyncRetries
}
