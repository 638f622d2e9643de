package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// CreateTask stores a new task and assigns it to a uniformly random worker.
// Only workers receive assignments; admins and managers dispatch work, they
// do not take it. With no workers projected yet the task stays unassigned
// rather than failing the request.
func (s *Service) CreateTask(ctx context.Context, caller domain.Identity, req CreateTaskRequest) (TaskResponse, error) {
	title, err := domain.ValidateTitle(req.Title)
	if err != nil {
		return TaskResponse{}, err
	}

	workers, err := s.accounts.ListByRole(ctx, domain.RoleWorker)
	if err != nil {
		return TaskResponse{}, err
	}

	now := s.nowFn()
	task := domain.Task{
		PublicID:    uuid.New(),
		Title:       title,
		Description: req.Description,
		Status:      domain.TaskStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(workers) > 0 {
		assignee := workers[s.pickFn(len(workers))].PublicID
		task.AssignedTo = &assignee
		task.Status = domain.TaskStatusAssigned
	}

	events := []ports.OutboxEvent{s.buildTaskEvent(eventTypeTaskCreated, task)}
	if task.AssignedTo != nil {
		events = append(events, s.buildTaskEvent(eventTypeTaskAssigned, task))
	}

	created, err := s.tasks.CreateWithOutboxTx(ctx, ports.CreateTaskParams{
		PublicID:     task.PublicID,
		Title:        task.Title,
		Description:  task.Description,
		AssignedTo:   task.AssignedTo,
		Status:       task.Status,
		CreatedAtUTC: now,
	}, events)
	if err != nil {
		return TaskResponse{}, err
	}
	return toTaskResponse(created), nil
}

// ListTasks returns the caller's view of the board: workers see their own
// assignments, admins and managers see everything.
func (s *Service) ListTasks(ctx context.Context, caller domain.Identity) ([]TaskResponse, error) {
	var (
		tasks []domain.Task
		err   error
	)
	if caller.Role.CanManageTasks() {
		tasks, err = s.tasks.ListAll(ctx)
	} else {
		tasks, err = s.tasks.ListByAssignee(ctx, caller.AccountID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskResponse(task))
	}
	return out, nil
}

// CompleteTask marks a task done. Only the assignee may complete it; that
// holds for admins too, completing is the worker's act. Ownership is checked
// before completion state so a non-assignee learns nothing about the task
// either way. A completed task is immutable, so the assignee completing it
// twice is a conflict.
func (s *Service) CompleteTask(ctx context.Context, caller domain.Identity, taskID uuid.UUID) (TaskResponse, error) {
	task, err := s.tasks.GetByPublicID(ctx, taskID)
	if err != nil {
		return TaskResponse{}, err
	}
	if task.AssignedTo == nil || *task.AssignedTo != caller.AccountID {
		return TaskResponse{}, fmt.Errorf("%w: task is not assigned to you", domain.ErrForbidden)
	}
	if task.Status == domain.TaskStatusCompleted {
		return TaskResponse{}, fmt.Errorf("%w: task already completed", domain.ErrConflict)
	}

	now := s.nowFn()
	task.Status = domain.TaskStatusCompleted
	task.UpdatedAt = now
	if err := s.tasks.CompleteWithOutboxTx(ctx, taskID, now, s.buildTaskEvent(eventTypeTaskCompleted, task)); err != nil {
		return TaskResponse{}, err
	}
	return toTaskResponse(task), nil
}

// ShuffleTasks reassigns every non-completed task to a uniformly random
// worker. Admin only: managers dispatch individual tasks, but tearing up
// the whole board is an administrative act. With no workers projected
// there is nobody to assign to and the shuffle is rejected.
func (s *Service) ShuffleTasks(ctx context.Context, caller domain.Identity) (ShuffleResponse, error) {
	if caller.Role != domain.RoleAdmin {
		return ShuffleResponse{}, fmt.Errorf("%w: only admins can shuffle tasks", domain.ErrForbidden)
	}

	workers, err := s.accounts.ListByRole(ctx, domain.RoleWorker)
	if err != nil {
		return ShuffleResponse{}, err
	}
	if len(workers) == 0 {
		return ShuffleResponse{}, fmt.Errorf("%w: no workers to assign tasks to", domain.ErrConflict)
	}

	open, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return ShuffleResponse{}, err
	}

	now := s.nowFn()
	reassigned := 0
	for _, task := range open {
		assignee := workers[s.pickFn(len(workers))].PublicID
		task.AssignedTo = &assignee
		task.Status = domain.TaskStatusAssigned
		task.UpdatedAt = now
		if err := s.tasks.ReassignWithOutboxTx(ctx, ports.ReassignTaskParams{
			PublicID:     task.PublicID,
			AssignedTo:   assignee,
			UpdatedAtUTC: now,
		}, s.buildTaskEvent(eventTypeTaskAssigned, task)); err != nil {
			return ShuffleResponse{}, err
		}
		reassigned++
	}
	return ShuffleResponse{ReassignedCount: reassigned}, nil
}

func toTaskResponse(task domain.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:      task.PublicID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.AssignedTo != nil {
		resp.AssignedTo = task.AssignedTo.String()
	}
	return resp
}
