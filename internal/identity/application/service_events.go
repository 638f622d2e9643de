package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/identity/ports"
)

// Account lifecycle event types published on the account stream.
const (
	eventTypeAccountCreated = "account_created"
	eventTypeAccountUpdated = "account_updated"
	eventTypeAccountDeleted = "account_deleted"
)

type accountEventPayload struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// buildAccountEvent wraps the account state into the versioned stream envelope.
// Partition key is the account id so per-account ordering survives partitioning.
func (s *Service) buildAccountEvent(eventType string, account domain.Account) ports.OutboxEvent {
	occurredAt := s.nowFn()
	eventID := uuid.New()
	envelope := map[string]any{
		"event_id":    eventID.String(),
		"event_type":  eventType,
		"occurred_at": occurredAt.Format(time.RFC3339),
		"payload": accountEventPayload{
			AccountID: account.PublicID.String(),
			Username:  account.Username,
			Role:      string(account.Role),
		},
	}
	payload, _ := json.Marshal(envelope)
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: account.PublicID.String(),
		Payload:      payload,
		OccurredAt:   occurredAt,
	}
}
