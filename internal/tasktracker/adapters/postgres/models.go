package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountProjectionModel struct {
	PublicID  uuid.UUID `gorm:"column:public_id;type:uuid;primaryKey"`
	Username  string    `gorm:"column:username"`
	Role      string    `gorm:"column:role"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountProjectionModel) TableName() string { return "account_projections" }

type taskModel struct {
	PublicID    uuid.UUID  `gorm:"column:public_id;type:uuid;primaryKey"`
	Title       string     `gorm:"column:title"`
	Description string     `gorm:"column:description"`
	AssignedTo  *uuid.UUID `gorm:"column:assigned_to;type:uuid"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (taskModel) TableName() string { return "tasks" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "event_dedup" }

// outboxTable is where task lifecycle events wait for the relay.
const outboxTable = "task_outbox"
