package service

import (
	"context"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
)

type MFAService interface {
	Enroll(ctx context.Context, userID domain.UserID, r dto.EnrollRequest, ip, ua string) (*dto.EnrollResponse, error)
	VerifyTOTP(ctx context.Context, userID domain.UserID, code, ip, ua string) (bool, error)
	RotateTOTPSecret(ctx context.Context, id domain.ConfigID) (*dto.EnrollResponse, error)
	IssueCode(ctx context.Context, userID domain.UserID, channel domain.MFAMethod, recipient, ip, ua string) (*dto.SendCodeResponse, error)
	VerifyCode(ctx context.Context, userID domain.UserID, channel domain.MFAMethod, recipient, code, ip, ua string) (domain.VerifyResult, error)
	GenerateRecoveryCodes(ctx context.Context, userID domain.UserID, n int) ([]string, error)
	UseRecoveryCode(ctx context.Context, userID domain.UserID, code, ip, ua string) (bool, error)
	Disable(ctx context.Context, id domain.ConfigID) error
	List(ctx context.Context, userID domain.UserID) ([]domain.MFAConfig, error)
}
