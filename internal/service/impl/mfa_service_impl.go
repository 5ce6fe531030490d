package impl

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/observability/metrics"
	"sessionguard/internal/otp"
	"sessionguard/internal/service"
	"sessionguard/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultRateLimit       = 5
	defaultRecoveryCount   = 8
	recoveryCodeBytes      = 5 // 40 bits -> 8 base32 chars
	oobCodeDigits          = 6
)

type MFAConfigOpts struct {
	Issuer          string // default issuer label for provisioning URIs
	SMSCodeTTL      time.Duration
	EmailCodeTTL    time.Duration
	CodeMaxAttempts int
	VerifyWindow    int
}

type MFAServiceImpl struct {
	configs  mfaConfigStore
	codes    codeStore
	recovery recoveryStore
	audit    service.AuditService
	sms      service.SMSGateway
	email    service.EmailGateway
	opts     MFAConfigOpts
	now      func() time.Time
	locks    stripedMutex
	// dispatch runs delivery off the verification path; tests swap it for a
	// synchronous variant.
	dispatch func(fn func())
}

type mfaConfigStore interface {
	Create(ctx context.Context, c *domain.MFAConfig) error
	GetByID(ctx context.Context, id domain.ConfigID) (*domain.MFAConfig, error)
	GetEnabled(ctx context.Context, userID domain.UserID, method domain.MFAMethod) (*domain.MFAConfig, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.MFAConfig, error)
	SetEnabled(ctx context.Context, id domain.ConfigID, enabled bool, at time.Time) error
	RotateSecret(ctx context.Context, id domain.ConfigID, secret, uri string, at time.Time) error
}

type codeStore interface {
	Replace(ctx context.Context, c *domain.OutOfBandCode) error
	Get(ctx context.Context, channel domain.MFAMethod, recipient string) (*domain.OutOfBandCode, error)
	Save(ctx context.Context, c *domain.OutOfBandCode) error
	Delete(ctx context.Context, id domain.CodeID) error
}

type recoveryStore interface {
	ReplaceBatch(ctx context.Context, userID domain.UserID, codes []domain.RecoveryCode) error
	ListUnused(ctx context.Context, userID domain.UserID) ([]domain.RecoveryCode, error)
	MarkUsed(ctx context.Context, id domain.CodeID, at time.Time) error
}

func NewMFAServiceImpl(st *store.Store, audit service.AuditService, sms service.SMSGateway, email service.EmailGateway, opts MFAConfigOpts) *MFAServiceImpl {
	if opts.SMSCodeTTL <= 0 {
		opts.SMSCodeTTL = 5 * time.Minute
	}
	if opts.EmailCodeTTL <= 0 {
		opts.EmailCodeTTL = 10 * time.Minute
	}
	if opts.CodeMaxAttempts <= 0 {
		opts.CodeMaxAttempts = 3
	}
	if opts.VerifyWindow <= 0 {
		opts.VerifyWindow = otp.DefaultWindow
	}
	return &MFAServiceImpl{
		configs:  st.MFAConfigs(),
		codes:    st.Codes(),
		recovery: st.RecoveryCodes(),
		audit:    audit,
		sms:      sms,
		email:    email,
		opts:     opts,
		now:      time.Now,
		dispatch: func(fn func()) { go fn() },
	}
}

func (m *MFAServiceImpl) Enroll(ctx context.Context, userID domain.UserID, r dto.EnrollRequest, ip, ua string) (*dto.EnrollResponse, error) {
	method := domain.MFAMethod(r.Method)
	now := m.now().UTC()

	cfg := &domain.MFAConfig{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         r.Name,
		Method:       method,
		Enabled:      true,
		Issuer:       r.Issuer,
		AccountName:  r.AccountName,
		PhoneNumber:  r.PhoneNumber,
		EmailAddress: r.EmailAddress,
		RateLimit:    defaultRateLimit,
		MaxAttempts:  m.opts.CodeMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cfg.Name == "" {
		cfg.Name = string(method)
	}

	switch method {
	case domain.MethodTOTP:
		if r.AccountName == "" {
			return nil, ErrMissingAccountName
		}
		if cfg.Issuer == "" {
			cfg.Issuer = m.opts.Issuer
		}
		secret, err := otp.GenerateSecret()
		if err != nil {
			return nil, err
		}
		cfg.Secret = secret
		cfg.ProvisioningURI = otp.ProvisioningURI(secret, cfg.AccountName, cfg.Issuer)
	case domain.MethodSMS:
		if r.PhoneNumber == "" {
			return nil, ErrMissingRecipient
		}
	case domain.MethodEmail:
		if r.EmailAddress == "" {
			return nil, ErrMissingRecipient
		}
	default:
		return nil, ErrUnknownMethod
	}

	if err := m.configs.Create(ctx, cfg); err != nil {
		return nil, err
	}

	m.record(ctx, &domain.SecurityEvent{
		Type:     domain.EventSuspiciousActivity,
		UserID:   userID,
		Severity: domain.SeverityLow,
		IP:       ip, UserAgent: ua,
		Reason:   fmt.Sprintf("MFA configuration created: %s", cfg.Name),
		Resolved: true,
	})

	return &dto.EnrollResponse{
		ConfigID:        cfg.ID.String(),
		Method:          string(cfg.Method),
		Enabled:         cfg.Enabled,
		Secret:          cfg.Secret,
		ProvisioningURI: cfg.ProvisioningURI,
	}, nil
}

// VerifyTOTP reports whether the code matches the user's enrolled TOTP
// secret. A missing or disabled configuration, a malformed code, and a wrong
// code all look the same to the caller: false.
func (m *MFAServiceImpl) VerifyTOTP(ctx context.Context, userID domain.UserID, code, ip, ua string) (bool, error) {
	cfg, err := m.configs.GetEnabled(ctx, userID, domain.MethodTOTP)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.recordVerify(ctx, userID, domain.MethodTOTP, ip, ua, false)
			return false, nil
		}
		return false, err
	}

	ok := otp.Verify(code, cfg.Secret, m.opts.VerifyWindow)
	m.recordVerify(ctx, userID, domain.MethodTOTP, ip, ua, ok)
	return ok, nil
}

// RotateTOTPSecret replaces the secret wholesale; the old secret stops
// verifying immediately.
func (m *MFAServiceImpl) RotateTOTPSecret(ctx context.Context, id domain.ConfigID) (*dto.EnrollResponse, error) {
	cfg, err := m.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.Method != domain.MethodTOTP {
		return nil, ErrNotTOTP
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	uri := otp.ProvisioningURI(secret, cfg.AccountName, cfg.Issuer)
	if err := m.configs.RotateSecret(ctx, id, secret, uri, m.now().UTC()); err != nil {
		return nil, err
	}

	m.record(ctx, &domain.SecurityEvent{
		Type:     domain.EventSuspiciousActivity,
		UserID:   cfg.UserID,
		Severity: domain.SeverityMedium,
		Reason:   fmt.Sprintf("TOTP secret rotated: %s", cfg.Name),
		Resolved: true,
	})

	return &dto.EnrollResponse{
		ConfigID:        cfg.ID.String(),
		Method:          string(cfg.Method),
		Enabled:         cfg.Enabled,
		Secret:          secret,
		ProvisioningURI: uri,
	}, nil
}

// IssueCode generates and stores a fresh out-of-band code, superseding any
// outstanding code for the same channel and recipient, and hands delivery to
// the gateway without blocking.
func (m *MFAServiceImpl) IssueCode(ctx context.Context, userID domain.UserID, channel domain.MFAMethod, recipient, ip, ua string) (*dto.SendCodeResponse, error) {
	if recipient == "" {
		return nil, ErrMissingRecipient
	}
	var ttl time.Duration
	switch channel {
	case domain.MethodSMS:
		ttl = m.opts.SMSCodeTTL
	case domain.MethodEmail:
		ttl = m.opts.EmailCodeTTL
	default:
		return nil, ErrUnknownMethod
	}

	code, err := otp.RandomNumericCode(oobCodeDigits)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	entry := &domain.OutOfBandCode{
		ID:          uuid.New(),
		UserID:      userID,
		Channel:     channel,
		Recipient:   recipient,
		Code:        code,
		ExpiresAt:   now.Add(ttl),
		MaxAttempts: m.opts.CodeMaxAttempts,
		CreatedAt:   now,
	}
	if err := m.codes.Replace(ctx, entry); err != nil {
		metrics.CodesIssuedTotal.WithLabelValues(string(channel), "failure").Inc()
		return nil, err
	}
	metrics.CodesIssuedTotal.WithLabelValues(string(channel), "success").Inc()

	m.dispatch(func() { m.deliver(channel, recipient, code, ttl, userID) })

	m.record(ctx, &domain.SecurityEvent{
		Type:        domain.EventLoginAttempt,
		UserID:      userID,
		Severity:    domain.SeverityLow,
		IP:          ip, UserAgent: ua,
		Reason:      fmt.Sprintf("verification code sent to %s", recipient),
		LoginMethod: string(channel),
		Resolved:    true,
	})

	return &dto.SendCodeResponse{
		CodeID:    entry.ID.String(),
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}

func (m *MFAServiceImpl) deliver(channel domain.MFAMethod, recipient, code string, ttl time.Duration, userID domain.UserID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch channel {
	case domain.MethodSMS:
		err = m.sms.SendCode(ctx, recipient, code, ttl)
	case domain.MethodEmail:
		err = m.email.SendCode(ctx, recipient, code, ttl)
	}
	if err != nil {
		slog.Error("out-of-band delivery failed", "channel", channel, "recipient", recipient, "error", err)
		m.record(ctx, &domain.SecurityEvent{
			Type:        domain.EventSuspiciousActivity,
			UserID:      userID,
			Severity:    domain.SeverityMedium,
			Reason:      fmt.Sprintf("code delivery to %s failed: %v", recipient, err),
			LoginMethod: string(channel),
		})
	}
}

// VerifyCode resolves a submitted out-of-band code. The attempt counter is
// incremented under a per-recipient lock so the cap cannot be raced, and the
// record is purged on success, expiry, or cap breach.
func (m *MFAServiceImpl) VerifyCode(ctx context.Context, userID domain.UserID, channel domain.MFAMethod, recipient, code, ip, ua string) (domain.VerifyResult, error) {
	unlock := m.locks.lock(string(channel) + ":" + recipient)
	defer unlock()

	entry, err := m.codes.Get(ctx, channel, recipient)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.recordVerify(ctx, userID, channel, ip, ua, false)
			return domain.VerifyInvalid, nil
		}
		return domain.VerifyInvalid, err
	}

	now := m.now().UTC()
	if now.After(entry.ExpiresAt) {
		if err := m.codes.Delete(ctx, entry.ID); err != nil {
			return domain.VerifyInvalid, err
		}
		m.record(ctx, &domain.SecurityEvent{
			Type:        domain.EventMFAFailure,
			UserID:      userID,
			Severity:    domain.SeverityMedium,
			IP:          ip, UserAgent: ua,
			Reason:      "expired verification code submitted",
			LoginMethod: string(channel),
		})
		metrics.MFAVerificationsTotal.WithLabelValues(string(channel), "expired").Inc()
		return domain.VerifyExpired, nil
	}

	entry.Attempts++
	if entry.Attempts >= entry.MaxAttempts {
		// Cap reached: the code dies regardless of correctness.
		if err := m.codes.Delete(ctx, entry.ID); err != nil {
			return domain.VerifyInvalid, err
		}
		m.record(ctx, &domain.SecurityEvent{
			Type:        domain.EventMFAFailure,
			UserID:      userID,
			Severity:    domain.SeverityHigh,
			IP:          ip, UserAgent: ua,
			Reason:      fmt.Sprintf("verification attempt cap reached for %s", recipient),
			LoginMethod: string(channel),
		})
		metrics.MFAVerificationsTotal.WithLabelValues(string(channel), "too_many_attempts").Inc()
		return domain.VerifyTooManyAttempts, nil
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) == 1 {
		if err := m.codes.Delete(ctx, entry.ID); err != nil {
			return domain.VerifyInvalid, err
		}
		m.recordVerify(ctx, userID, channel, ip, ua, true)
		return domain.VerifyValid, nil
	}

	if err := m.codes.Save(ctx, entry); err != nil {
		return domain.VerifyInvalid, err
	}
	m.recordVerify(ctx, userID, channel, ip, ua, false)
	return domain.VerifyInvalid, nil
}

// GenerateRecoveryCodes mints a fresh recovery sheet. Only bcrypt hashes are
// stored; the plaintexts exist once, in the response.
func (m *MFAServiceImpl) GenerateRecoveryCodes(ctx context.Context, userID domain.UserID, n int) ([]string, error) {
	if n <= 0 {
		n = defaultRecoveryCount
	}
	now := m.now().UTC()
	plain := make([]string, 0, n)
	hashed := make([]domain.RecoveryCode, 0, n)
	for i := 0; i < n; i++ {
		code, err := randomRecoveryCode()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		plain = append(plain, code)
		hashed = append(hashed, domain.RecoveryCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		})
	}
	if err := m.recovery.ReplaceBatch(ctx, userID, hashed); err != nil {
		return nil, err
	}

	m.record(ctx, &domain.SecurityEvent{
		Type:     domain.EventSuspiciousActivity,
		UserID:   userID,
		Severity: domain.SeverityLow,
		Reason:   fmt.Sprintf("%d recovery codes generated", n),
		Resolved: true,
	})
	return plain, nil
}

func (m *MFAServiceImpl) UseRecoveryCode(ctx context.Context, userID domain.UserID, code, ip, ua string) (bool, error) {
	unused, err := m.recovery.ListUnused(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range unused {
		if bcrypt.CompareHashAndPassword(unused[i].CodeHash, []byte(code)) == nil {
			if err := m.recovery.MarkUsed(ctx, unused[i].ID, m.now().UTC()); err != nil {
				return false, err
			}
			m.recordVerify(ctx, userID, "recovery", ip, ua, true)
			return true, nil
		}
	}
	m.recordVerify(ctx, userID, "recovery", ip, ua, false)
	return false, nil
}

func (m *MFAServiceImpl) Disable(ctx context.Context, id domain.ConfigID) error {
	cfg, err := m.configs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.configs.SetEnabled(ctx, id, false, m.now().UTC()); err != nil {
		return err
	}
	m.record(ctx, &domain.SecurityEvent{
		Type:     domain.EventSuspiciousActivity,
		UserID:   cfg.UserID,
		Severity: domain.SeverityMedium,
		Reason:   fmt.Sprintf("MFA configuration disabled: %s", cfg.Name),
		Resolved: true,
	})
	return nil
}

func (m *MFAServiceImpl) List(ctx context.Context, userID domain.UserID) ([]domain.MFAConfig, error) {
	return m.configs.ListByUser(ctx, userID)
}

func (m *MFAServiceImpl) recordVerify(ctx context.Context, userID domain.UserID, method domain.MFAMethod, ip, ua string, ok bool) {
	result := "failure"
	typ := domain.EventMFAFailure
	sev := domain.SeverityMedium
	reason := fmt.Sprintf("%s verification failed", method)
	if ok {
		result = "success"
		typ = domain.EventLoginAttempt
		sev = domain.SeverityLow
		reason = fmt.Sprintf("%s verification successful", method)
	}
	metrics.MFAVerificationsTotal.WithLabelValues(string(method), result).Inc()
	m.record(ctx, &domain.SecurityEvent{
		Type:        typ,
		UserID:      userID,
		Severity:    sev,
		IP:          ip, UserAgent: ua,
		Reason:      reason,
		LoginMethod: string(method),
		Resolved:    ok,
	})
}

func (m *MFAServiceImpl) record(ctx context.Context, e *domain.SecurityEvent) {
	if err := m.audit.Record(ctx, e); err != nil {
		slog.Error("audit record failed", "type", e.Type, "error", err)
	}
}

func randomRecoveryCode() (string, error) {
	buf := make([]byte, recoveryCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", otp.ErrSecureRandomUnavailable, err)
	}
	return otp.EncodeBase32(buf), nil
}
