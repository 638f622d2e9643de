package application

import (
	"time"
)

type Config struct {
	ServiceName         string
	EventDedupTTL       time.Duration
	IdentityCacheMaxTTL time.Duration
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type TaskResponse struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ShuffleResponse struct {
	ReassignedCount int `json:"reassigned_count"`
}
