package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/platform/outbox"
)

// CreateAccountTxParams captures atomic account-creation inputs.
type CreateAccountTxParams struct {
	PublicID       uuid.UUID
	Username       string
	CredentialHash string
	Role           domain.Role
	CreatedAtUTC   time.Time
}

// UpdateAccountTxParams carries the mutable account fields. Nil means unchanged.
type UpdateAccountTxParams struct {
	PublicID       uuid.UUID
	CredentialHash *string
	Role           *domain.Role
	UpdatedAtUTC   time.Time
}

// AccountRepository defines persistence operations for accounts.
// The *WithOutboxTx methods exist to enforce account+outbox consistency: the
// lifecycle event row commits or rolls back with the account mutation.
type AccountRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateAccountTxParams, outboxEvent OutboxEvent) (domain.Account, error)
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.Account, error)
	UpdateWithOutboxTx(ctx context.Context, params UpdateAccountTxParams, outboxEvent *OutboxEvent) (domain.Account, error)
	DeactivateWithOutboxTx(ctx context.Context, publicID uuid.UUID, deactivatedAt time.Time, outboxEvent OutboxEvent) error
}

// The outbox surface is shared relay infrastructure; the aliases keep
// application code on the ports vocabulary.
type (
	OutboxEvent      = outbox.Event
	OutboxRecord     = outbox.Record
	OutboxRepository = outbox.Store
)
