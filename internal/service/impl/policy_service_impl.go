package impl

import (
	"context"
	"log/slog"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/service"
	"sessionguard/internal/store"

	"github.com/google/uuid"
)

type PolicyServiceImpl struct {
	policies policyStore
	audit    service.AuditService
	now      func() time.Time
}

type policyStore interface {
	Create(ctx context.Context, p *domain.SessionPolicy) error
	Save(ctx context.Context, p *domain.SessionPolicy) error
	GetByID(ctx context.Context, id domain.PolicyID) (*domain.SessionPolicy, error)
	List(ctx context.Context) ([]domain.SessionPolicy, error)
	Activate(ctx context.Context, id domain.PolicyID) error
	Delete(ctx context.Context, id domain.PolicyID) error
}

func NewPolicyServiceImpl(st *store.Store, audit service.AuditService) *PolicyServiceImpl {
	return &PolicyServiceImpl{policies: st.Policies(), audit: audit, now: time.Now}
}

// fromRequest maps wire-level minutes and days onto durations, filling
// unset numeric fields from the built-in defaults.
func fromRequest(r dto.PolicyRequest) *domain.SessionPolicy {
	def := domain.DefaultPolicy()
	p := &domain.SessionPolicy{
		Name:                          r.Name,
		Timeout:                       time.Duration(r.TimeoutMinutes) * time.Minute,
		IdleTimeout:                   time.Duration(r.IdleTimeoutMinutes) * time.Minute,
		MaxConcurrentSessions:         r.MaxConcurrentSessions,
		EvictOldest:                   r.EvictOldest,
		SlidingExpiry:                 r.SlidingExpiry,
		RememberMe:                    r.RememberMe,
		RememberMeDuration:            time.Duration(r.RememberMeDays) * 24 * time.Hour,
		ForceLogoutOnCredentialChange: r.ForceLogoutOnCredentialChange,
		DeviceFingerprinting:          r.DeviceFingerprinting,
		IPAllowlist:                   r.IPAllowlist,
	}
	if r.TimeoutMinutes == 0 {
		p.Timeout = def.Timeout
	}
	if r.IdleTimeoutMinutes == 0 {
		p.IdleTimeout = def.IdleTimeout
	}
	if r.MaxConcurrentSessions == 0 {
		p.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if r.RememberMe && r.RememberMeDays == 0 {
		p.RememberMeDuration = def.RememberMeDuration
	}
	return p
}

func (s *PolicyServiceImpl) Create(ctx context.Context, r dto.PolicyRequest) (*domain.SessionPolicy, error) {
	p := fromRequest(r)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.policies.Create(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("session policy created", "policy_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *PolicyServiceImpl) Update(ctx context.Context, id domain.PolicyID, r dto.PolicyRequest) (*domain.SessionPolicy, error) {
	existing, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := fromRequest(r)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.Active = existing.Active
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.policies.Save(ctx, p); err != nil {
		return nil, err
	}
	if p.Active {
		s.recordActivation(ctx, p, "active session policy updated")
	}
	return p, nil
}

// Activate makes the given policy the single active one; the store flips the
// flags in one transaction.
func (s *PolicyServiceImpl) Activate(ctx context.Context, id domain.PolicyID) error {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policies.Activate(ctx, id); err != nil {
		return err
	}
	s.recordActivation(ctx, p, "session policy activated")
	slog.Info("session policy activated", "policy_id", id, "name", p.Name)
	return nil
}

func (s *PolicyServiceImpl) Get(ctx context.Context, id domain.PolicyID) (*domain.SessionPolicy, error) {
	return s.policies.GetByID(ctx, id)
}

func (s *PolicyServiceImpl) List(ctx context.Context) ([]domain.SessionPolicy, error) {
	return s.policies.List(ctx)
}

func (s *PolicyServiceImpl) Delete(ctx context.Context, id domain.PolicyID) error {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Active {
		return domain.ErrInvalidInput
	}
	return s.policies.Delete(ctx, id)
}

func (s *PolicyServiceImpl) recordActivation(ctx context.Context, p *domain.SessionPolicy, reason string) {
	e := &domain.SecurityEvent{
		Type:     domain.EventSuspiciousActivity,
		Severity: domain.SeverityLow,
		Reason:   reason + ": " + p.Name,
		Resolved: true,
	}
	if err := s.audit.Record(ctx, e); err != nil {
		slog.Error("audit record failed", "type", e.Type, "error", err)
	}
}
