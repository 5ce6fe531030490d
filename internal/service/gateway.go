package service

import (
	"context"
	"time"
)

// SMSGateway and EmailGateway deliver out-of-band codes. Both are external
// collaborators; the issuer dispatches sends without blocking verification
// logic and records the outcome as a security event.
type SMSGateway interface {
	SendCode(ctx context.Context, phoneNumber, code string, ttl time.Duration) error
}

type EmailGateway interface {
	SendCode(ctx context.Context, emailAddress, code string, ttl time.Duration) error
}
