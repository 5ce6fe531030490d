package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConcurrentLimit   = errors.New("concurrent session limit exceeded")
	ErrSessionTerminated = errors.New("session already terminated")
	ErrPolicyIdleTimeout = errors.New("idle timeout exceeds absolute timeout")
	ErrIPNotAllowed      = errors.New("address not in policy allowlist")
)
