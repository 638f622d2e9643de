package ports

import "github.com/viralforge/taskboard/internal/platform/outbox"

// EventPublisher delivers a serialized event to the broker.
// Partition key keeps per-account ordering on the account lifecycle stream.
type EventPublisher = outbox.Publisher
