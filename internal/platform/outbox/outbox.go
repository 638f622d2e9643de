// Package outbox implements the transactional outbox both services rely
// on: event rows commit inside the same transaction as the state change
// they describe, and a relay drains them to the broker afterwards. The
// broker never sees an event whose transaction rolled back.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle event before it is stored. The partition key keeps
// per-entity ordering on the stream.
type Event struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// Record is the durable form of an event, including delivery metadata.
type Record struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// Store is the persistence contract for outbox rows. Claiming hands a
// batch to exactly one relay; the claim expires so a crashed relay's
// batch becomes claimable again.
type Store interface {
	Enqueue(ctx context.Context, event Event) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]Record, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// Publisher delivers a serialized event to the broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
