package store

import (
	"context"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventStore struct{ db *gorm.DB }

func (s *Store) Events() *EventStore { return &EventStore{s.DB} }

func (es *EventStore) Append(ctx context.Context, e *domain.SecurityEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return es.db.WithContext(ctx).Create(e).Error
}

func (es *EventStore) Query(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error) {
	var out []domain.SecurityEvent
	err := filterEvents(es.db.WithContext(ctx), f).
		Order("timestamp DESC").
		Limit(queryLimit(f.Limit)).
		Find(&out).Error
	return out, err
}

func (es *EventStore) Count(ctx context.Context, f domain.EventFilter) (int64, error) {
	var n int64
	err := filterEvents(es.db.WithContext(ctx).Model(&domain.SecurityEvent{}), f).Count(&n).Error
	return n, err
}

func (es *EventStore) Resolve(ctx context.Context, id domain.EventID) error {
	tx := es.db.WithContext(ctx).
		Model(&domain.SecurityEvent{}).
		Where("id = ?", id).
		Update("resolved", true)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (es *EventStore) Delete(ctx context.Context, id domain.EventID) error {
	tx := es.db.WithContext(ctx).Delete(&domain.SecurityEvent{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteOldest prunes the n oldest events; the retention policy lives in the
// audit service, this is just its storage primitive.
func (es *EventStore) DeleteOldest(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	sub := es.db.WithContext(ctx).
		Model(&domain.SecurityEvent{}).
		Select("id").
		Order("timestamp ASC").
		Limit(n)
	return es.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Delete(&domain.SecurityEvent{}).Error
}

func filterEvents(db *gorm.DB, f domain.EventFilter) *gorm.DB {
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.Severity != "" {
		db = db.Where("severity = ?", f.Severity)
	}
	if f.UserID != uuid.Nil {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.IP != "" {
		db = db.Where("ip = ?", f.IP)
	}
	if !f.Since.IsZero() {
		db = db.Where("timestamp >= ?", f.Since)
	}
	return db
}

func queryLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
