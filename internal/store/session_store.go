package store

import (
	"context"
	"errors"
	"time"

	"sessionguard/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStore struct{ db *gorm.DB }

func (s *Store) Sessions() *SessionStore { return &SessionStore{s.DB} }

func (ss *SessionStore) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return ss.db.WithContext(ctx).Create(s).Error
}

func (ss *SessionStore) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var s domain.Session
	if err := ss.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (ss *SessionStore) Save(ctx context.Context, s *domain.Session) error {
	return ss.db.WithContext(ctx).Save(s).Error
}

func (ss *SessionStore) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Session, error) {
	var out []domain.Session
	err := ss.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (ss *SessionStore) ListActive(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := ss.db.WithContext(ctx).
		Where("status = ?", domain.SessionActive).
		Find(&out).Error
	return out, err
}

func (ss *SessionStore) CountActiveForUser(ctx context.Context, userID domain.UserID) (int64, error) {
	var n int64
	err := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ? AND status = ?", userID, domain.SessionActive).
		Count(&n).Error
	return n, err
}

func (ss *SessionStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("status = ?", domain.SessionActive).
		Count(&n).Error
	return n, err
}

// OldestActiveForUser is the eviction candidate: least-recently active first.
func (ss *SessionStore) OldestActiveForUser(ctx context.Context, userID domain.UserID) (*domain.Session, error) {
	var s domain.Session
	err := ss.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.SessionActive).
		Order("last_activity ASC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// TerminateAllForUser marks every active session terminated and reports how
// many were affected.
func (ss *SessionStore) TerminateAllForUser(ctx context.Context, userID domain.UserID, at time.Time) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ? AND status = ?", userID, domain.SessionActive).
		Updates(map[string]any{"status": domain.SessionTerminated, "last_activity": at})
	return tx.RowsAffected, tx.Error
}
