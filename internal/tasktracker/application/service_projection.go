package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

type accountEventEnvelope struct {
	EventID   string              `json:"event_id"`
	EventType string              `json:"event_type"`
	Payload   accountEventPayload `json:"payload"`
}

type accountEventPayload struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// HandleAccountEvent applies one message from the account lifecycle stream to
// the local projection. Delivery is at least once, so application must be
// idempotent: duplicates are dropped via the dedup table, and created/updated
// are both upserts so replays and cross-partition reordering still converge.
// A malformed message returns ErrMalformedEvent and is skipped by the caller.
func (s *Service) HandleAccountEvent(ctx context.Context, payload []byte) error {
	var evt accountEventEnvelope
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: invalid json", domain.ErrMalformedEvent)
	}
	if evt.EventID == "" {
		return fmt.Errorf("%w: missing event_id", domain.ErrMalformedEvent)
	}

	dup, err := s.eventDedup.IsDuplicate(ctx, evt.EventID, s.nowFn())
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	switch evt.EventType {
	case eventTypeAccountCreated, eventTypeAccountUpdated:
		accountID, parseErr := uuid.Parse(evt.Payload.AccountID)
		if parseErr != nil {
			return fmt.Errorf("%w: invalid account_id", domain.ErrMalformedEvent)
		}
		role, roleErr := parseProjectionRole(evt.Payload.Role)
		if roleErr != nil {
			return roleErr
		}
		params := ports.UpsertAccountParams{
			PublicID:  accountID,
			Username:  evt.Payload.Username,
			Role:      role,
			Timestamp: s.nowFn(),
		}
		// account_created must not clobber state written by a later
		// account_updated that arrived first.
		if evt.EventType == eventTypeAccountCreated {
			err = s.accounts.CreateIfAbsent(ctx, params)
		} else {
			err = s.accounts.Upsert(ctx, params)
		}
		if err != nil {
			return err
		}
	case eventTypeAccountDeleted:
		accountID, parseErr := uuid.Parse(evt.Payload.AccountID)
		if parseErr != nil {
			return fmt.Errorf("%w: invalid account_id", domain.ErrMalformedEvent)
		}
		if err := s.accounts.Delete(ctx, accountID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown event_type %q", domain.ErrMalformedEvent, evt.EventType)
	}

	return s.eventDedup.MarkProcessed(ctx, evt.EventID, evt.EventType, s.nowFn().Add(s.cfg.EventDedupTTL))
}

func parseProjectionRole(raw string) (domain.Role, error) {
	switch domain.Role(raw) {
	case domain.RoleAdmin, domain.RoleWorker, domain.RoleManager:
		return domain.Role(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrMalformedEvent, raw)
	}
}
