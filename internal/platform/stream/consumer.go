package stream

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one fetched record. The raw broker message rides along
// unexported so Commit can acknowledge exactly this record.
type Message struct {
	Topic   string
	Payload []byte

	raw kafka.Message
}

// Consumer reads from a consumer group without auto-committing. An
// uncommitted message is redelivered after a rebalance or restart, which
// is what lets callers hold their place across transient failures
// instead of losing the record.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("stream consumer needs at least one broker")
	}
	if groupID == "" {
		return nil, errors.New("stream consumer needs a group id")
	}
	if len(topics) == 0 {
		return nil, errors.New("stream consumer needs at least one topic")
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: topics,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
		}),
	}, nil
}

// Fetch returns up to max pending messages, giving up quickly when the
// stream is idle. Fetching does not move the committed offset.
func (c *Consumer) Fetch(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]Message, 0, max)
	for len(out) < max {
		fetchCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return out, nil
			case errors.Is(err, context.Canceled):
				return out, ctx.Err()
			default:
				return out, err
			}
		}
		out = append(out, Message{Topic: msg.Topic, Payload: msg.Value, raw: msg})
	}
	return out, nil
}

// Commit acknowledges a fetched message, advancing the group offset past
// it. Callers commit only after the message has been applied (or ruled
// permanently unprocessable).
func (c *Consumer) Commit(ctx context.Context, msg Message) error {
	return c.reader.CommitMessages(ctx, msg.raw)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// NoopSource satisfies the consumer surface when no broker is
// configured.
type NoopSource struct{}

func (NoopSource) Fetch(context.Context, int) ([]Message, error) { return nil, nil }

func (NoopSource) Commit(context.Context, Message) error { return nil }
