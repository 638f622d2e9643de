package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

// UpsertAccountParams carries projection state from the account stream or
// from a synchronous verification response.
type UpsertAccountParams struct {
	PublicID  uuid.UUID
	Username  string
	Role      domain.Role
	Timestamp time.Time
}

// AccountProjectionRepository persists the local account copies.
// Upsert is insert-if-absent plus field update so that out-of-order
// created/updated events still converge.
type AccountProjectionRepository interface {
	Upsert(ctx context.Context, params UpsertAccountParams) error
	CreateIfAbsent(ctx context.Context, params UpsertAccountParams) error
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.AccountProjection, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.AccountProjection, error)
	Delete(ctx context.Context, publicID uuid.UUID) error
}

// CreateTaskParams captures atomic task-creation inputs.
type CreateTaskParams struct {
	PublicID     uuid.UUID
	Title        string
	Description  string
	AssignedTo   *uuid.UUID
	Status       domain.TaskStatus
	CreatedAtUTC time.Time
}

// ReassignTaskParams moves a task to a new assignee.
type ReassignTaskParams struct {
	PublicID     uuid.UUID
	AssignedTo   uuid.UUID
	UpdatedAtUTC time.Time
}

// TaskRepository defines persistence operations for tasks.
// The *WithOutboxTx methods enforce task+outbox consistency so the task
// stream never diverges from committed state.
type TaskRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateTaskParams, outboxEvents []OutboxEvent) (domain.Task, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.Task, error)
	ListAll(ctx context.Context) ([]domain.Task, error)
	ListByAssignee(ctx context.Context, accountID uuid.UUID) ([]domain.Task, error)
	ListOpen(ctx context.Context) ([]domain.Task, error)
	ReassignWithOutboxTx(ctx context.Context, params ReassignTaskParams, outboxEvent OutboxEvent) error
	CompleteWithOutboxTx(ctx context.Context, publicID uuid.UUID, completedAt time.Time, outboxEvent OutboxEvent) error
}

// EventDedupRepository remembers applied event ids so at-least-once delivery
// collapses to exactly-once application.
type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

// The outbox surface is shared relay infrastructure; the aliases keep
// application code on the ports vocabulary.
type (
	OutboxEvent      = outbox.Event
	OutboxRecord     = outbox.Record
	OutboxRepository = outbox.Store
)
