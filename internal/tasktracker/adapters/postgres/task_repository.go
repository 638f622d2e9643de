package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/platform/pg"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateTaskParams, outboxEvents []ports.OutboxEvent) (domain.Task, error) {
	rec := taskModel{
		PublicID:    params.PublicID,
		Title:       params.Title,
		Description: params.Description,
		AssignedTo:  params.AssignedTo,
		Status:      string(params.Status),
		CreatedAt:   params.CreatedAtUTC,
		UpdatedAt:   params.CreatedAtUTC,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if pg.IsUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrConflict
			}
			return err
		}
		for _, event := range outboxEvents {
			if err := outbox.Append(tx, outboxTable, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return toDomainTask(rec), nil
}

func (r *taskRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.Task, error) {
	var rec taskModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	return toDomainTask(rec), nil
}

func (r *taskRepository) ListAll(ctx context.Context) ([]domain.Task, error) {
	var rows []taskModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainTasks(rows), nil
}

func (r *taskRepository) ListByAssignee(ctx context.Context, accountID uuid.UUID) ([]domain.Task, error) {
	var rows []taskModel
	if err := r.db.WithContext(ctx).
		Where("assigned_to = ?", accountID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainTasks(rows), nil
}

func (r *taskRepository) ListOpen(ctx context.Context) ([]domain.Task, error) {
	var rows []taskModel
	if err := r.db.WithContext(ctx).
		Where("status <> ?", string(domain.TaskStatusCompleted)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainTasks(rows), nil
}

func (r *taskRepository) ReassignWithOutboxTx(ctx context.Context, params ports.ReassignTaskParams, outboxEvent ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskModel{}).
			Where("public_id = ?", params.PublicID).
			Where("status <> ?", string(domain.TaskStatusCompleted)).
			Updates(map[string]any{
				"assigned_to": params.AssignedTo,
				"status":      string(domain.TaskStatusAssigned),
				"updated_at":  params.UpdatedAtUTC,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return outbox.Append(tx, outboxTable, outboxEvent)
	})
}

func (r *taskRepository) CompleteWithOutboxTx(ctx context.Context, publicID uuid.UUID, completedAt time.Time, outboxEvent ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskModel{}).
			Where("public_id = ?", publicID).
			Where("status <> ?", string(domain.TaskStatusCompleted)).
			Updates(map[string]any{
				"status":     string(domain.TaskStatusCompleted),
				"updated_at": completedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the task vanished or a concurrent request completed it.
			var count int64
			if err := tx.Model(&taskModel{}).Where("public_id = ?", publicID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}
		return outbox.Append(tx, outboxTable, outboxEvent)
	})
}

func toDomainTask(rec taskModel) domain.Task {
	return domain.Task{
		PublicID:    rec.PublicID,
		Title:       rec.Title,
		Description: rec.Description,
		AssignedTo:  rec.AssignedTo,
		Status:      domain.TaskStatus(rec.Status),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toDomainTasks(rows []taskModel) []domain.Task {
	out := make([]domain.Task, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainTask(rec))
	}
	return out
}
