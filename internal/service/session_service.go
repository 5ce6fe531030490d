package service

import (
	"context"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
)

type SessionService interface {
	Create(ctx context.Context, userID domain.UserID, r dto.CreateSessionRequest, ip, ua string) (*domain.Session, error)
	Touch(ctx context.Context, id domain.SessionID) error
	Validate(ctx context.Context, id domain.SessionID) (bool, error)
	Terminate(ctx context.Context, id domain.SessionID, reason string) error
	TerminateAllForUser(ctx context.Context, userID domain.UserID, reason string) (int64, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Session, error)
	// Sweep lazily expires stale sessions; run it periodically to bound the
	// active set in long-lived processes.
	Sweep(ctx context.Context) (int, error)
}
