package postgres

import (
	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// Repositories bundles the tasktracker persistence adapters behind their ports.
type Repositories struct {
	Accounts   ports.AccountProjectionRepository
	Tasks      ports.TaskRepository
	EventDedup ports.EventDedupRepository
	Outbox     ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:   &accountProjectionRepository{db: db},
		Tasks:      &taskRepository{db: db},
		EventDedup: &eventDedupRepository{db: db},
		Outbox:     outbox.NewPostgresStore(db, outboxTable),
	}
}
