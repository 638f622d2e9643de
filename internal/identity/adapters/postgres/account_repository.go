package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/identity/ports"
	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/platform/pg"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateAccountTxParams, outboxEvent ports.OutboxEvent) (domain.Account, error) {
	rec := accountModel{
		PublicID:       params.PublicID,
		Username:       params.Username,
		CredentialHash: params.CredentialHash,
		Role:           string(params.Role),
		Active:         true,
		CreatedAt:      params.CreatedAtUTC,
		UpdatedAt:      params.CreatedAtUTC,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if pg.IsUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrConflict
			}
			return err
		}
		return outbox.Append(tx, outboxTable, outboxEvent)
	})
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) UpdateWithOutboxTx(ctx context.Context, params ports.UpdateAccountTxParams, outboxEvent *ports.OutboxEvent) (domain.Account, error) {
	updates := map[string]any{"updated_at": params.UpdatedAtUTC}
	if params.CredentialHash != nil {
		updates["credential_hash"] = *params.CredentialHash
	}
	if params.Role != nil {
		updates["role"] = string(*params.Role)
	}

	var rec accountModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).Where("public_id = ?", params.PublicID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if outboxEvent != nil {
			if err := outbox.Append(tx, outboxTable, *outboxEvent); err != nil {
				return err
			}
		}
		return tx.Where("public_id = ?", params.PublicID).Take(&rec).Error
	})
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) DeactivateWithOutboxTx(ctx context.Context, publicID uuid.UUID, deactivatedAt time.Time, outboxEvent ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).
			Where("public_id = ?", publicID).
			Where("active = ?", true).
			Updates(map[string]any{"active": false, "updated_at": deactivatedAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return outbox.Append(tx, outboxTable, outboxEvent)
	})
}

func toDomainAccount(rec accountModel) domain.Account {
	return domain.Account{
		PublicID:       rec.PublicID,
		Username:       rec.Username,
		CredentialHash: rec.CredentialHash,
		Role:           domain.Role(rec.Role),
		Active:         rec.Active,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}
