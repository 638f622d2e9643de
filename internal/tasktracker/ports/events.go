package ports

import "github.com/viralforge/taskboard/internal/platform/outbox"

// EventPublisher delivers a serialized event to the broker.
// Partition key is the task id so per-task ordering survives partitioning.
type EventPublisher = outbox.Publisher
