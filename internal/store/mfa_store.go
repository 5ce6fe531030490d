package store

import (
	"context"
	"errors"
	"time"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MFAConfigStore struct{ db *gorm.DB }

func (s *Store) MFAConfigs() *MFAConfigStore { return &MFAConfigStore{s.DB} }

func (cs *MFAConfigStore) Create(ctx context.Context, c *domain.MFAConfig) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return cs.db.WithContext(ctx).Create(c).Error
}

func (cs *MFAConfigStore) GetByID(ctx context.Context, id domain.ConfigID) (*domain.MFAConfig, error) {
	var c domain.MFAConfig
	if err := cs.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetEnabled returns the enabled configuration of the given method for a
// user, or domain.ErrNotFound.
func (cs *MFAConfigStore) GetEnabled(ctx context.Context, userID domain.UserID, method domain.MFAMethod) (*domain.MFAConfig, error) {
	var c domain.MFAConfig
	err := cs.db.WithContext(ctx).
		First(&c, "user_id = ? AND method = ? AND enabled", userID, method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (cs *MFAConfigStore) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.MFAConfig, error) {
	var out []domain.MFAConfig
	err := cs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (cs *MFAConfigStore) SetEnabled(ctx context.Context, id domain.ConfigID, enabled bool, at time.Time) error {
	tx := cs.db.WithContext(ctx).
		Model(&domain.MFAConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"enabled": enabled, "updated_at": at})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RotateSecret replaces the secret and provisioning URI wholesale.
func (cs *MFAConfigStore) RotateSecret(ctx context.Context, id domain.ConfigID, secret, uri string, at time.Time) error {
	tx := cs.db.WithContext(ctx).
		Model(&domain.MFAConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"secret": secret, "provisioning_uri": uri, "updated_at": at})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (cs *MFAConfigStore) CountEnabled(ctx context.Context) (int64, error) {
	var n int64
	err := cs.db.WithContext(ctx).
		Model(&domain.MFAConfig{}).
		Where("enabled").
		Count(&n).Error
	return n, err
}
