package domain

import "time"

type MFAMethod string

const (
	MethodTOTP  MFAMethod = "totp"
	MethodSMS   MFAMethod = "sms"
	MethodEmail MFAMethod = "email"
)

// MFAConfig is one enrolled factor for a user. TOTP configurations carry a
// Base32 secret generated at enrollment; the secret is never edited in place,
// only replaced wholesale on rotation. Disabling keeps the row.
type MFAConfig struct {
	ID              ConfigID  `gorm:"type:uuid;primaryKey" db:"id"`
	UserID          UserID    `gorm:"type:uuid;index" db:"user_id"`
	Name            string    `gorm:"type:text;not null" db:"name"`
	Method          MFAMethod `gorm:"type:text;not null" db:"method"`
	Enabled         bool      `gorm:"not null;default:true" db:"enabled"`
	Issuer          string    `gorm:"type:text" db:"issuer"`
	AccountName     string    `gorm:"type:text" db:"account_name"`
	PhoneNumber     string    `gorm:"type:text" db:"phone_number"`
	EmailAddress    string    `gorm:"type:text" db:"email_address"`
	RateLimit       int       `gorm:"not null;default:5" db:"rate_limit"`
	MaxAttempts     int       `gorm:"not null;default:3" db:"max_attempts"`
	Secret          string    `gorm:"type:text" db:"secret"`
	ProvisioningURI string    `gorm:"type:text" db:"provisioning_uri"`
	CreatedAt       time.Time `gorm:"not null" db:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" db:"updated_at"`
}

func (MFAConfig) TableName() string { return "mfa_configs" }

// OutOfBandCode is a short-lived numeric code delivered over SMS or email.
// Single use: a successful verify or breaching the attempt cap removes it.
type OutOfBandCode struct {
	ID          CodeID    `gorm:"type:uuid;primaryKey" db:"id"`
	UserID      UserID    `gorm:"type:uuid;index" db:"user_id"`
	Channel     MFAMethod `gorm:"type:text;not null;index:idx_oob_channel_recipient" db:"channel"`
	Recipient   string    `gorm:"type:text;not null;index:idx_oob_channel_recipient" db:"recipient"`
	Code        string    `gorm:"type:text;not null" db:"code"`
	ExpiresAt   time.Time `gorm:"not null" db:"expires_at"`
	Attempts    int       `gorm:"not null;default:0" db:"attempts"`
	MaxAttempts int       `gorm:"not null;default:3" db:"max_attempts"`
	CreatedAt   time.Time `gorm:"not null" db:"created_at"`
}

func (OutOfBandCode) TableName() string { return "oob_codes" }

type RecoveryCode struct {
	ID        CodeID     `gorm:"type:uuid;primaryKey" db:"id"`
	UserID    UserID     `gorm:"type:uuid;index" db:"user_id"`
	CodeHash  []byte     `gorm:"type:bytea;not null" db:"code_hash"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `gorm:"not null" db:"created_at"`
}

func (RecoveryCode) TableName() string { return "recovery_codes" }

// VerifyResult is the outcome of an out-of-band code verification. Outcomes
// are values, not errors: a wrong code and an expired code are both ordinary
// results a caller relays to its own flow.
type VerifyResult string

const (
	VerifyValid           VerifyResult = "valid"
	VerifyInvalid         VerifyResult = "invalid"
	VerifyExpired         VerifyResult = "expired"
	VerifyTooManyAttempts VerifyResult = "too_many_attempts"
)
