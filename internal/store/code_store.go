package store

import (
	"context"
	"errors"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CodeStore struct{ db *gorm.DB }

func (s *Store) Codes() *CodeStore { return &CodeStore{s.DB} }

// Replace stores a fresh code for (channel, recipient), superseding any
// outstanding code for that pair in the same transaction.
func (cs *CodeStore) Replace(ctx context.Context, c *domain.OutOfBandCode) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("channel = ? AND recipient = ?", c.Channel, c.Recipient).
			Delete(&domain.OutOfBandCode{}).Error; err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}

func (cs *CodeStore) Get(ctx context.Context, channel domain.MFAMethod, recipient string) (*domain.OutOfBandCode, error) {
	var c domain.OutOfBandCode
	err := cs.db.WithContext(ctx).
		First(&c, "channel = ? AND recipient = ?", channel, recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (cs *CodeStore) Save(ctx context.Context, c *domain.OutOfBandCode) error {
	return cs.db.WithContext(ctx).Save(c).Error
}

func (cs *CodeStore) Delete(ctx context.Context, id domain.CodeID) error {
	return cs.db.WithContext(ctx).Delete(&domain.OutOfBandCode{}, "id = ?", id).Error
}
