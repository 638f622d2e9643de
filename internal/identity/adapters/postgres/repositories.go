package postgres

import (
	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/identity/ports"
	"github.com/viralforge/taskboard/internal/platform/outbox"
)

// Repositories bundles the identity persistence adapters behind their ports.
type Repositories struct {
	Accounts ports.AccountRepository
	Outbox   ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts: &accountRepository{db: db},
		Outbox:   outbox.NewPostgresStore(db, outboxTable),
	}
}
