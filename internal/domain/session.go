package domain

import "time"

type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionIdleExpired SessionStatus = "idle_expired"
	SessionExpired     SessionStatus = "expired"
	SessionTerminated  SessionStatus = "terminated"
)

// Session is one authenticated presence of a user. Active is the only
// non-terminal status; a session that left Active is never reactivated.
type Session struct {
	ID           SessionID     `gorm:"type:uuid;primaryKey" db:"id"`
	UserID       UserID        `gorm:"type:uuid;index" db:"user_id"`
	Fingerprint  string        `gorm:"type:text" db:"fingerprint"`
	IP           string        `gorm:"type:text" db:"ip"`
	UserAgent    string        `gorm:"type:text" db:"user_agent"`
	Browser      string        `gorm:"type:text" db:"browser"`
	OS           string        `gorm:"type:text" db:"os"`
	Location     string        `gorm:"type:text" db:"location"`
	LoginMethod  string        `gorm:"type:text" db:"login_method"`
	Status       SessionStatus `gorm:"type:text;not null;index" db:"status"`
	CreatedAt    time.Time     `gorm:"not null" db:"created_at"`
	LastActivity time.Time     `gorm:"not null" db:"last_activity"`
	ExpiresAt    time.Time     `gorm:"not null" db:"expires_at"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Active() bool { return s.Status == SessionActive }
