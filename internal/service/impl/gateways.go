package impl

import (
	"context"
	"log/slog"
	"time"
)

// LogSMSGateway and LogEmailGateway are development stand-ins that log
// instead of dispatching to a provider. Swap in real gateways at wiring time.
type LogSMSGateway struct{}

func (LogSMSGateway) SendCode(_ context.Context, phoneNumber, code string, ttl time.Duration) error {
	slog.Info("sms code dispatched", "to", phoneNumber, "code", code, "ttl", ttl)
	return nil
}

type LogEmailGateway struct{}

func (LogEmailGateway) SendCode(_ context.Context, emailAddress, code string, ttl time.Duration) error {
	slog.Info("email code dispatched", "to", emailAddress, "code", code, "ttl", ttl)
	return nil
}
