package dto

import "time"

type EventResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	UserID      string    `json:"userId"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    string    `json:"severity"`
	IP          string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	Location    string    `json:"location,omitempty"`
	Reason      string    `json:"reason"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LoginMethod string    `json:"loginMethod,omitempty"`
	Resolved    bool      `json:"resolved"`
}

type DashboardStats struct {
	ActiveSessions      int64           `json:"activeSessions"`
	EnabledMFAMethods   int64           `json:"enabledMfaMethods"`
	SecurityEventsToday int64           `json:"securityEventsToday"`
	FailedAttempts      int64           `json:"failedAttempts"`
	RecentEvents        []EventResponse `json:"recentEvents"`
}
