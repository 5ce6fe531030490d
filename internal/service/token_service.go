package service

import (
	"context"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
)

type TokenService interface {
	Issue(ctx context.Context, s *domain.Session) (*dto.TokenResponse, error)
	Introspect(ctx context.Context, token string) (*dto.IntrospectResponse, error)
}
