package impl

import (
	"fmt"

	"sessionguard/internal/domain"
)

// Validation sentinels wrap domain.ErrInvalidInput so transport-level
// errors.Is mapping treats them uniformly.
var (
	ErrUnknownMethod      = fmt.Errorf("%w: unknown mfa method", domain.ErrInvalidInput)
	ErrMissingAccountName = fmt.Errorf("%w: missing account name", domain.ErrInvalidInput)
	ErrMissingRecipient   = fmt.Errorf("%w: missing recipient", domain.ErrInvalidInput)
	ErrNotTOTP            = fmt.Errorf("%w: configuration is not totp", domain.ErrInvalidInput)
)
