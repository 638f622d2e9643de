package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type dispatchOutcome int

const (
	outcomePublished dispatchOutcome = iota
	outcomeRetryScheduled
	outcomeDeadLettered
)

// Relay drains unpublished outbox rows to the broker on a fixed cadence.
// A row that keeps failing is dead-lettered after maxRetries so the rest
// of the queue keeps moving.
type Relay struct {
	logger     *slog.Logger
	store      Store
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

func NewRelay(logger *slog.Logger, store Store, publisher Publisher, interval time.Duration, batchSize int, claimTTL time.Duration, maxRetries int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Relay{
		logger:     logger,
		store:      store,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run loops until the context is cancelled. Iteration errors are logged
// and the loop keeps going; a broken broker should not kill the process.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.drain(ctx); err != nil {
			r.logger.ErrorContext(ctx, "outbox drain failed",
				"module", "outbox.relay",
				"layer", "adapter",
				"operation", "drain",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := r.store.ClaimUnpublished(ctx, r.batchSize, claimToken, time.Now().UTC().Add(r.claimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	var published, retried, deadLettered int
	for _, rec := range records {
		switch r.dispatch(ctx, claimToken, rec) {
		case outcomePublished:
			published++
		case outcomeRetryScheduled:
			retried++
		case outcomeDeadLettered:
			deadLettered++
		}
	}

	r.logger.InfoContext(ctx, "outbox batch drained",
		"module", "outbox.relay",
		"layer", "adapter",
		"operation", "drain",
		"outcome", "success",
		"batch_size", len(records),
		"published_count", published,
		"retried_count", retried,
		"dead_lettered_count", deadLettered,
	)
	return nil
}

func (r *Relay) dispatch(ctx context.Context, claimToken string, rec Record) dispatchOutcome {
	now := time.Now().UTC()

	// A row re-claimed at the threshold never reaches the broker again.
	if rec.RetryCount >= r.maxRetries {
		_ = r.store.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
		return outcomeDeadLettered
	}

	err := r.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if err == nil {
		_ = r.store.MarkPublished(ctx, rec.OutboxID, claimToken, now)
		return outcomePublished
	}

	retries := rec.RetryCount + 1
	fields := []any{
		"module", "outbox.relay",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"retry_count", retries,
		"error", err,
	}
	if retries >= r.maxRetries {
		r.logger.ErrorContext(ctx, "outbox record dead-lettered", fields...)
		_ = r.store.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
		return outcomeDeadLettered
	}
	r.logger.WarnContext(ctx, "outbox publish failed, will retry", fields...)
	_ = r.store.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
	return outcomeRetryScheduled
}
