package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/platform/pg"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

type accountProjectionRepository struct {
	db *gorm.DB
}

func (r *accountProjectionRepository) Upsert(ctx context.Context, params ports.UpsertAccountParams) error {
	rec := accountProjectionModel{
		PublicID:  params.PublicID,
		Username:  params.Username,
		Role:      string(params.Role),
		CreatedAt: params.Timestamp,
		UpdatedAt: params.Timestamp,
	}
	return r.db.WithContext(ctx).
		Where("public_id = ?", params.PublicID).
		Assign(map[string]any{
			"username":   params.Username,
			"role":       string(params.Role),
			"updated_at": params.Timestamp,
		}).
		FirstOrCreate(&rec).Error
}

func (r *accountProjectionRepository) CreateIfAbsent(ctx context.Context, params ports.UpsertAccountParams) error {
	rec := accountProjectionModel{
		PublicID:  params.PublicID,
		Username:  params.Username,
		Role:      string(params.Role),
		CreatedAt: params.Timestamp,
		UpdatedAt: params.Timestamp,
	}
	err := r.db.WithContext(ctx).Create(&rec).Error
	if err != nil && (pg.IsUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey)) {
		return nil
	}
	return err
}

func (r *accountProjectionRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.AccountProjection, error) {
	var rec accountProjectionModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AccountProjection{}, domain.ErrNotFound
		}
		return domain.AccountProjection{}, err
	}
	return toDomainAccountProjection(rec), nil
}

func (r *accountProjectionRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.AccountProjection, error) {
	var rows []accountProjectionModel
	if err := r.db.WithContext(ctx).
		Where("role = ?", string(role)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AccountProjection, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAccountProjection(rec))
	}
	return out, nil
}

func (r *accountProjectionRepository) Delete(ctx context.Context, publicID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("public_id = ?", publicID).Delete(&accountProjectionModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainAccountProjection(rec accountProjectionModel) domain.AccountProjection {
	return domain.AccountProjection{
		PublicID:  rec.PublicID,
		Username:  rec.Username,
		Role:      domain.Role(rec.Role),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
