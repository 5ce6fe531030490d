package store

import (
	"context"
	"errors"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PolicyStore struct{ db *gorm.DB }

func (s *Store) Policies() *PolicyStore { return &PolicyStore{s.DB} }

func (ps *PolicyStore) Create(ctx context.Context, p *domain.SessionPolicy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return ps.db.WithContext(ctx).Create(p).Error
}

func (ps *PolicyStore) Save(ctx context.Context, p *domain.SessionPolicy) error {
	return ps.db.WithContext(ctx).Save(p).Error
}

func (ps *PolicyStore) GetByID(ctx context.Context, id domain.PolicyID) (*domain.SessionPolicy, error) {
	var p domain.SessionPolicy
	if err := ps.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (ps *PolicyStore) List(ctx context.Context) ([]domain.SessionPolicy, error) {
	var out []domain.SessionPolicy
	err := ps.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

// Active returns the single active policy, or domain.ErrNotFound when no
// policy has been activated yet.
func (ps *PolicyStore) Active(ctx context.Context) (*domain.SessionPolicy, error) {
	var p domain.SessionPolicy
	if err := ps.db.WithContext(ctx).First(&p, "active").Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Activate flips the active flag to the given policy atomically.
func (ps *PolicyStore) Activate(ctx context.Context, id domain.PolicyID) error {
	return ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.SessionPolicy{}).
			Where("active").
			Update("active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.SessionPolicy{}).
			Where("id = ?", id).
			Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (ps *PolicyStore) Delete(ctx context.Context, id domain.PolicyID) error {
	tx := ps.db.WithContext(ctx).Delete(&domain.SessionPolicy{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
