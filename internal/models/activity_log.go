package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityLog is one audit trail row.
type ActivityLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ActorID      *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	Action       string          `db:"action" json:"action"`
	SubjectType  string          `db:"subject_type" json:"subject_type"`
	SubjectID    uuid.UUID       `db:"subject_id" json:"subject_id"`
	BeforeValues json.RawMessage `db:"before_values" json:"before_values"`
	AfterValues  json.RawMessage `db:"after_values" json:"after_values"`
	IPAddress    *string         `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Notification is an in-app notification. Payload is {"event": ..., "data": ...}.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
