package service

import (
	"context"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
)

type AuditService interface {
	Record(ctx context.Context, e *domain.SecurityEvent) error
	Query(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error)
	Resolve(ctx context.Context, id domain.EventID) error
	Delete(ctx context.Context, id domain.EventID) error
	Stats(ctx context.Context) (*dto.DashboardStats, error)
}
