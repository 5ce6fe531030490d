package store

import (
	"context"
	"time"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecoveryCodeStore struct{ db *gorm.DB }

func (s *Store) RecoveryCodes() *RecoveryCodeStore { return &RecoveryCodeStore{s.DB} }

// ReplaceBatch regenerates a user's recovery set: old codes are dropped so a
// leaked sheet cannot outlive regeneration.
func (rs *RecoveryCodeStore) ReplaceBatch(ctx context.Context, userID domain.UserID, codes []domain.RecoveryCode) error {
	return rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.RecoveryCode{}).Error; err != nil {
			return err
		}
		for i := range codes {
			if codes[i].ID == uuid.Nil {
				codes[i].ID = uuid.New()
			}
		}
		return tx.Create(&codes).Error
	})
}

func (rs *RecoveryCodeStore) ListUnused(ctx context.Context, userID domain.UserID) ([]domain.RecoveryCode, error) {
	var out []domain.RecoveryCode
	err := rs.db.WithContext(ctx).
		Where("user_id = ? AND used_at IS NULL", userID).
		Find(&out).Error
	return out, err
}

func (rs *RecoveryCodeStore) MarkUsed(ctx context.Context, id domain.CodeID, at time.Time) error {
	tx := rs.db.WithContext(ctx).
		Model(&domain.RecoveryCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
