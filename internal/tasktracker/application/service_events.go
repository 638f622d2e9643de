package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// Task lifecycle event types published on the task stream.
const (
	eventTypeTaskCreated   = "task_created"
	eventTypeTaskAssigned  = "task_assigned"
	eventTypeTaskCompleted = "task_completed"
)

// Account lifecycle event types consumed from the identity stream.
const (
	eventTypeAccountCreated = "account_created"
	eventTypeAccountUpdated = "account_updated"
	eventTypeAccountDeleted = "account_deleted"
)

type taskEventPayload struct {
	TaskID      string `json:"task_id"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	Description string `json:"description"`
}

func (s *Service) buildTaskEvent(eventType string, task domain.Task) ports.OutboxEvent {
	occurredAt := s.nowFn()
	eventID := uuid.New()
	data := taskEventPayload{
		TaskID:      task.PublicID.String(),
		Description: task.Description,
	}
	if task.AssignedTo != nil {
		data.AssignedTo = task.AssignedTo.String()
	}
	envelope := map[string]any{
		"event_id":    eventID.String(),
		"event_type":  eventType,
		"occurred_at": occurredAt.Format(time.RFC3339),
		"payload":     data,
	}
	payload, _ := json.Marshal(envelope)
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: task.PublicID.String(),
		Payload:      payload,
		OccurredAt:   occurredAt,
	}
}
