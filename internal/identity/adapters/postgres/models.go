package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	PublicID       uuid.UUID `gorm:"column:public_id;type:uuid;primaryKey"`
	Username       string    `gorm:"column:username"`
	CredentialHash string    `gorm:"column:credential_hash"`
	Role           string    `gorm:"column:role"`
	Active         bool      `gorm:"column:active"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

// outboxTable is where account lifecycle events wait for the relay.
const outboxTable = "identity_outbox"
