package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// row maps an outbox record onto whichever table the owning service
// uses. Both services share the column layout; only the table differs.
type row struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func newRow(event Event) *row {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return &row{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
	}
}

// Append writes an event row inside an already-open transaction. The
// repositories call this from their *WithOutboxTx methods so the event
// commits or rolls back with the domain mutation.
func Append(tx *gorm.DB, table string, event Event) error {
	return tx.Table(table).Create(newRow(event)).Error
}

// PostgresStore is the Store implementation over a service-owned outbox
// table.
type PostgresStore struct {
	db    *gorm.DB
	table string
}

func NewPostgresStore(db *gorm.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, table: table}
}

func (s *PostgresStore) Enqueue(ctx context.Context, event Event) error {
	return s.db.WithContext(ctx).Table(s.table).Create(newRow(event)).Error
}

// ClaimUnpublished stamps up to limit unclaimed rows with the relay's
// claim token and returns them. SKIP LOCKED keeps concurrent relays from
// blocking each other on the same rows.
func (s *PostgresStore) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, errors.New("claim token is required")
	}

	now := time.Now().UTC()
	var rows []row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidates := tx.Table(s.table).
			Select("outbox_id").
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Table(s.table).
			Where("outbox_id IN (?)", candidates).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Table(s.table).
			Where("claim_token = ?", claimToken).
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Order("created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{
			OutboxID:       r.OutboxID,
			EventType:      r.EventType,
			PartitionKey:   r.PartitionKey,
			Payload:        []byte(r.Payload),
			RetryCount:     r.RetryCount,
			LastError:      r.LastError,
			CreatedAt:      r.CreatedAt,
			PublishedAt:    r.PublishedAt,
			LastErrorAt:    r.LastErrorAt,
			ClaimToken:     r.ClaimToken,
			ClaimUntil:     r.ClaimUntil,
			DeadLetteredAt: r.DeadLetteredAt,
		})
	}
	return records, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return s.claimedRow(ctx, outboxID, claimToken).Updates(map[string]any{
		"published_at": at,
		"claim_token":  nil,
		"claim_until":  nil,
	}).Error
}

func (s *PostgresStore) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return s.claimedRow(ctx, outboxID, claimToken).Updates(map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
		"claim_token":   nil,
		"claim_until":   nil,
	}).Error
}

func (s *PostgresStore) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return s.claimedRow(ctx, outboxID, claimToken).Updates(map[string]any{
		"retry_count":      gorm.Expr("retry_count + 1"),
		"last_error":       errMsg,
		"last_error_at":    at,
		"dead_lettered_at": at,
		"claim_token":      nil,
		"claim_until":      nil,
	}).Error
}

func (s *PostgresStore) claimedRow(ctx context.Context, outboxID uuid.UUID, claimToken string) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table).
		Where("outbox_id = ?", outboxID).
		Where("claim_token = ?", claimToken)
}
