package domain

import "time"

type EventType string

const (
	EventLoginAttempt       EventType = "login_attempt"
	EventMFAFailure         EventType = "mfa_failure"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventSessionTimeout     EventType = "session_timeout"
	EventBruteForce         EventType = "brute_force"
	EventDeviceChange       EventType = "device_change"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is an append-only audit record. Rows are never mutated after
// creation except for the resolved flag.
type SecurityEvent struct {
	ID          EventID   `gorm:"type:uuid;primaryKey" db:"id"`
	Type        EventType `gorm:"type:text;not null;index" db:"type"`
	UserID      UserID    `gorm:"type:uuid;index" db:"user_id"`
	Timestamp   time.Time `gorm:"not null;index" db:"timestamp"`
	Severity    Severity  `gorm:"type:text;not null;index" db:"severity"`
	IP          string    `gorm:"type:text" db:"ip"`
	UserAgent   string    `gorm:"type:text" db:"user_agent"`
	Location    string    `gorm:"type:text" db:"location"`
	Reason      string    `gorm:"type:text" db:"reason"`
	Fingerprint string    `gorm:"type:text" db:"fingerprint"`
	LoginMethod string    `gorm:"type:text" db:"login_method"`
	Resolved    bool      `gorm:"not null;default:false" db:"resolved"`
}

func (SecurityEvent) TableName() string { return "security_events" }

// EventFilter narrows audit queries. Zero values mean "any".
type EventFilter struct {
	Type     EventType
	Severity Severity
	UserID   UserID
	IP       string
	Since    time.Time
	Limit    int
}
