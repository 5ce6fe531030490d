package dto

import "time"

type CreateSessionRequest struct {
	UserID      string `json:"userId"`
	Location    string `json:"location,omitempty"`
	LoginMethod string `json:"loginMethod,omitempty"`
	RememberMe  bool   `json:"rememberMe,omitempty"`
}

type SessionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	IP           string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	Location     string    `json:"location,omitempty"`
	LoginMethod  string    `json:"loginMethod"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	AccessToken  string    `json:"accessToken,omitempty"`
}

type TerminateAllRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type TerminateAllResponse struct {
	Terminated int64 `json:"terminated"`
}

type ValidityResponse struct {
	Valid bool `json:"valid"`
}
