package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

func accountEventJSON(t *testing.T, eventID, eventType, accountID, username, role string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event_id":    eventID,
		"event_type":  eventType,
		"occurred_at": "2026-01-01T00:00:00Z",
		"payload": map[string]string{
			"account_id": accountID,
			"username":   username,
			"role":       role,
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestHandleAccountEventProjectsAccount(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	evt := accountEventJSON(t, uuid.NewString(), "account_created", accountID.String(), "alice", "worker")
	if err := f.service.HandleAccountEvent(ctx, evt); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	projected, err := f.projections.GetByPublicID(ctx, accountID)
	if err != nil {
		t.Fatalf("expected projection: %v", err)
	}
	if projected.Username != "alice" || projected.Role != domain.RoleWorker {
		t.Fatalf("unexpected projection: %+v", projected)
	}
}

func TestHandleAccountEventDuplicateIsDropped(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	eventID := uuid.NewString()
	if err := f.service.HandleAccountEvent(ctx, accountEventJSON(t, eventID, "account_created", accountID.String(), "alice", "worker")); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	// Redelivery of the same event id must not re-apply, even if the body
	// somehow differs.
	if err := f.service.HandleAccountEvent(ctx, accountEventJSON(t, eventID, "account_updated", accountID.String(), "mallory", "admin")); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	projected, err := f.projections.GetByPublicID(ctx, accountID)
	if err != nil {
		t.Fatalf("expected projection: %v", err)
	}
	if projected.Username != "alice" || projected.Role != domain.RoleWorker {
		t.Fatalf("duplicate delivery mutated projection: %+v", projected)
	}
}

func TestHandleAccountEventUpdateBeforeCreateConverges(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	update := accountEventJSON(t, uuid.NewString(), "account_updated", accountID.String(), "alice", "manager")
	if err := f.service.HandleAccountEvent(ctx, update); err != nil {
		t.Fatalf("update event failed: %v", err)
	}

	// The late-arriving created event must not roll the projection back.
	create := accountEventJSON(t, uuid.NewString(), "account_created", accountID.String(), "alice", "worker")
	if err := f.service.HandleAccountEvent(ctx, create); err != nil {
		t.Fatalf("created event failed: %v", err)
	}

	projected, err := f.projections.GetByPublicID(ctx, accountID)
	if err != nil {
		t.Fatalf("expected projection: %v", err)
	}
	if projected.Role != domain.RoleManager {
		t.Fatalf("created event clobbered newer state: %+v", projected)
	}
}

func TestHandleAccountEventDeleteRemovesProjection(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	if err := f.service.HandleAccountEvent(ctx, accountEventJSON(t, uuid.NewString(), "account_created", accountID.String(), "alice", "worker")); err != nil {
		t.Fatalf("created event failed: %v", err)
	}
	if err := f.service.HandleAccountEvent(ctx, accountEventJSON(t, uuid.NewString(), "account_deleted", accountID.String(), "alice", "worker")); err != nil {
		t.Fatalf("deleted event failed: %v", err)
	}
	if _, err := f.projections.GetByPublicID(ctx, accountID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected projection gone, got %v", err)
	}

	// Deleting an account that was never projected is a no-op.
	if err := f.service.HandleAccountEvent(ctx, accountEventJSON(t, uuid.NewString(), "account_deleted", uuid.NewString(), "ghost", "worker")); err != nil {
		t.Fatalf("delete of unknown account should succeed, got %v", err)
	}
}

func TestHandleAccountEventMalformedIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	cases := [][]byte{
		[]byte("{not json"),
		accountEventJSON(t, "", "account_created", uuid.NewString(), "alice", "worker"),
		accountEventJSON(t, uuid.NewString(), "account_exploded", uuid.NewString(), "alice", "worker"),
		accountEventJSON(t, uuid.NewString(), "account_created", "not-a-uuid", "alice", "worker"),
		accountEventJSON(t, uuid.NewString(), "account_created", uuid.NewString(), "alice", "superuser"),
	}
	for i, payload := range cases {
		if err := f.service.HandleAccountEvent(ctx, payload); !errors.Is(err, domain.ErrMalformedEvent) {
			t.Fatalf("case %d: expected malformed event error, got %v", i, err)
		}
	}
}
