package domain

import "time"

// SessionPolicy is a named configuration bundle the session manager consults
// at evaluation time. Exactly one policy is active at a time.
type SessionPolicy struct {
	ID                    PolicyID      `gorm:"type:uuid;primaryKey" db:"id"`
	Name                  string        `gorm:"type:text;not null" db:"name"`
	Timeout               time.Duration `gorm:"not null" db:"timeout"`
	IdleTimeout           time.Duration `gorm:"not null" db:"idle_timeout"`
	MaxConcurrentSessions int           `gorm:"not null" db:"max_concurrent_sessions"`
	// EvictOldest decides cap overflow: terminate the oldest-by-activity
	// session instead of rejecting the new login. Default is rejection.
	EvictOldest        bool          `gorm:"not null;default:false" db:"evict_oldest"`
	SlidingExpiry      bool          `gorm:"not null;default:false" db:"sliding_expiry"`
	RememberMe         bool          `gorm:"not null;default:false" db:"remember_me"`
	RememberMeDuration time.Duration `db:"remember_me_duration"`
	ForceLogoutOnCredentialChange bool `gorm:"not null;default:true" db:"force_logout_on_credential_change"`
	DeviceFingerprinting          bool `gorm:"not null;default:true" db:"device_fingerprinting"`
	IPAllowlist                   []string `gorm:"serializer:json" db:"ip_allowlist"`
	Active                        bool     `gorm:"not null;default:false;index" db:"active"`
	CreatedAt                     time.Time `gorm:"not null" db:"created_at"`
	UpdatedAt                     time.Time `gorm:"not null" db:"updated_at"`
}

func (SessionPolicy) TableName() string { return "session_policies" }

func (p *SessionPolicy) Validate() error {
	if p.Name == "" {
		return ErrInvalidInput
	}
	if p.Timeout <= 0 || p.IdleTimeout <= 0 || p.MaxConcurrentSessions <= 0 {
		return ErrInvalidInput
	}
	if p.IdleTimeout > p.Timeout {
		return ErrPolicyIdleTimeout
	}
	return nil
}

func (p *SessionPolicy) AllowsIP(ip string) bool {
	if len(p.IPAllowlist) == 0 {
		return true
	}
	for _, allowed := range p.IPAllowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

// DefaultPolicy mirrors the defaults applied when no administrator-defined
// policy has been activated yet.
func DefaultPolicy() *SessionPolicy {
	return &SessionPolicy{
		Name:                          "default",
		Timeout:                       60 * time.Minute,
		IdleTimeout:                   30 * time.Minute,
		MaxConcurrentSessions:         5,
		RememberMe:                    true,
		RememberMeDuration:            30 * 24 * time.Hour,
		ForceLogoutOnCredentialChange: true,
		DeviceFingerprinting:          true,
	}
}
