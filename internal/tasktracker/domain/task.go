package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "created"
	TaskStatusAssigned  TaskStatus = "assigned"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a unit of work tracked by this service.
// AssignedTo references an account projection; it is nil while no worker
// is available to take the task.
type Task struct {
	PublicID    uuid.UUID
	Title       string
	Description string
	AssignedTo  *uuid.UUID
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateTitle checks the task title shape.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(trimmed) > 255 {
		return "", fmt.Errorf("%w: title must be at most 255 characters", ErrInvalidInput)
	}
	return trimmed, nil
}
