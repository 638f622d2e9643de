// Package events drives the account-stream projector: it feeds account
// lifecycle messages into the application layer and owns the commit
// semantics that make consumption at-least-once.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/taskboard/internal/platform/stream"
	"github.com/viralforge/taskboard/internal/tasktracker/application"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

const fetchBatchSize = 50

// Source is the slice of the consumer the projector needs. Fetch must
// not advance the committed offset; only Commit does.
type Source interface {
	Fetch(ctx context.Context, max int) ([]stream.Message, error)
	Commit(ctx context.Context, msg stream.Message) error
}

// Projector applies account lifecycle events to the local projection.
// A message's offset is committed only after the event is applied or
// ruled malformed. Transient handler failures are retried in place with
// backoff; when retries are exhausted the projector parks, leaving the
// offset where it is so the message is redelivered instead of lost.
// Malformed messages are the one exception: they can never be applied,
// so they are logged and committed past.
type Projector struct {
	logger       *slog.Logger
	source       Source
	service      *application.Service
	topic        string
	interval     time.Duration
	retryBackoff time.Duration
	maxAttempts  int
}

func NewProjector(logger *slog.Logger, source Source, service *application.Service, topic string, interval, retryBackoff time.Duration, maxAttempts int) *Projector {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Projector{
		logger:       logger,
		source:       source,
		service:      service,
		topic:        topic,
		interval:     interval,
		retryBackoff: retryBackoff,
		maxAttempts:  maxAttempts,
	}
}

func (p *Projector) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.ErrorContext(ctx, "projector iteration parked",
				"module", "events.projector",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "parked",
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

// processOnce fetches a batch and applies it in order. On an exhausted
// failure it returns without committing the failed message or anything
// after it, so the whole tail is refetched next tick.
func (p *Projector) processOnce(ctx context.Context) error {
	msgs, err := p.source.Fetch(ctx, fetchBatchSize)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.Topic == p.topic {
			if err := p.apply(ctx, msg.Payload); err != nil {
				return err
			}
		}
		if err := p.source.Commit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// apply runs the handler with bounded backoff. nil means the event was
// applied or is malformed and must be committed past; any error means
// the offset has to stay put.
func (p *Projector) apply(ctx context.Context, payload []byte) error {
	backoff := p.retryBackoff
	for attempt := 1; ; attempt++ {
		err := p.service.HandleAccountEvent(ctx, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrMalformedEvent) {
			p.logger.WarnContext(ctx, "skipping malformed account event",
				"module", "events.projector",
				"layer", "adapter",
				"operation", "apply_account_event",
				"outcome", "malformed",
				"error", err,
			)
			return nil
		}
		if attempt >= p.maxAttempts {
			return err
		}
		p.logger.WarnContext(ctx, "account event application failed, retrying",
			"module", "events.projector",
			"layer", "adapter",
			"operation", "apply_account_event",
			"outcome", "retry",
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
