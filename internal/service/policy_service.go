package service

import (
	"context"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
)

type PolicyService interface {
	Create(ctx context.Context, r dto.PolicyRequest) (*domain.SessionPolicy, error)
	Update(ctx context.Context, id domain.PolicyID, r dto.PolicyRequest) (*domain.SessionPolicy, error)
	Activate(ctx context.Context, id domain.PolicyID) error
	Get(ctx context.Context, id domain.PolicyID) (*domain.SessionPolicy, error)
	List(ctx context.Context) ([]domain.SessionPolicy, error)
	Delete(ctx context.Context, id domain.PolicyID) error
}
