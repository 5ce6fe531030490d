package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/fingerprint"
	"sessionguard/internal/netutil"
	"sessionguard/internal/observability/metrics"
	"sessionguard/internal/service"
	"sessionguard/internal/store"

	"github.com/google/uuid"
)

type SessionServiceImpl struct {
	sessions sessionStore
	policies activePolicySource
	audit    service.AuditService
	now      func() time.Time
	locks    stripedMutex
}

type sessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Session, error)
	ListActive(ctx context.Context) ([]domain.Session, error)
	CountActiveForUser(ctx context.Context, userID domain.UserID) (int64, error)
	OldestActiveForUser(ctx context.Context, userID domain.UserID) (*domain.Session, error)
	TerminateAllForUser(ctx context.Context, userID domain.UserID, at time.Time) (int64, error)
}

type activePolicySource interface {
	Active(ctx context.Context) (*domain.SessionPolicy, error)
}

func NewSessionServiceImpl(st *store.Store, audit service.AuditService) *SessionServiceImpl {
	return &SessionServiceImpl{
		sessions: st.Sessions(),
		policies: st.Policies(),
		audit:    audit,
		now:      time.Now,
	}
}

// activePolicy is the policy referenced at evaluation time; built-in
// defaults apply until an administrator activates one.
func (s *SessionServiceImpl) activePolicy(ctx context.Context) (*domain.SessionPolicy, error) {
	p, err := s.policies.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DefaultPolicy(), nil
		}
		return nil, err
	}
	return p, nil
}

// Create opens a session for an already-authenticated user. The per-user
// concurrency check and the insert run under one lock so two concurrent
// logins cannot both pass the cap.
func (s *SessionServiceImpl) Create(ctx context.Context, userID domain.UserID, r dto.CreateSessionRequest, ip, ua string) (*domain.Session, error) {
	if normalized, ok := netutil.NormalizeIP(ip); ok {
		ip = normalized
	}
	ua = netutil.TruncateUserAgent(ua)

	policy, err := s.activePolicy(ctx)
	if err != nil {
		return nil, err
	}

	if !policy.AllowsIP(ip) {
		s.record(ctx, &domain.SecurityEvent{
			Type:     domain.EventSuspiciousActivity,
			UserID:   userID,
			Severity: domain.SeverityHigh,
			IP:       ip, UserAgent: ua,
			Reason: "login from address outside policy allowlist",
		})
		metrics.SessionsCreatedTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrIPNotAllowed
	}

	unlock := s.locks.lock(userID.String())
	defer unlock()

	active, err := s.sessions.CountActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active >= int64(policy.MaxConcurrentSessions) {
		if !policy.EvictOldest {
			s.record(ctx, &domain.SecurityEvent{
				Type:     domain.EventSuspiciousActivity,
				UserID:   userID,
				Severity: domain.SeverityMedium,
				IP:       ip, UserAgent: ua,
				Reason:   fmt.Sprintf("concurrent session limit reached (%d)", policy.MaxConcurrentSessions),
			})
			metrics.SessionsCreatedTotal.WithLabelValues("rejected").Inc()
			return nil, domain.ErrConcurrentLimit
		}
		if err := s.evictOldest(ctx, userID, ip, ua); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	timeout := policy.Timeout
	if r.RememberMe && policy.RememberMe && policy.RememberMeDuration > 0 {
		timeout = policy.RememberMeDuration
	}
	browser, osName := fingerprint.DetectBrowserOS(ua)
	loginMethod := r.LoginMethod
	if loginMethod == "" {
		loginMethod = "password"
	}

	sess := &domain.Session{
		ID:           uuid.New(),
		UserID:       userID,
		IP:           ip,
		UserAgent:    ua,
		Browser:      browser,
		OS:           osName,
		Location:     r.Location,
		LoginMethod:  loginMethod,
		Status:       domain.SessionActive,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(timeout),
	}
	if policy.DeviceFingerprinting {
		sess.Fingerprint = fingerprint.Derive(ua, ip)
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		metrics.SessionsCreatedTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.SessionsCreatedTotal.WithLabelValues("success").Inc()

	s.record(ctx, &domain.SecurityEvent{
		Type:        domain.EventLoginAttempt,
		UserID:      userID,
		Severity:    domain.SeverityLow,
		IP:          ip, UserAgent: ua,
		Location:    r.Location,
		Reason:      fmt.Sprintf("new session created from %s on %s", browser, osName),
		Fingerprint: sess.Fingerprint,
		LoginMethod: loginMethod,
		Resolved:    true,
	})
	slog.Info("session created", "session_id", sess.ID, "user_id", userID, "browser", browser, "os", osName)
	return sess, nil
}

func (s *SessionServiceImpl) evictOldest(ctx context.Context, userID domain.UserID, ip, ua string) error {
	oldest, err := s.sessions.OldestActiveForUser(ctx, userID)
	if err != nil {
		return err
	}
	oldest.Status = domain.SessionTerminated
	if err := s.sessions.Save(ctx, oldest); err != nil {
		return err
	}
	metrics.SessionsTerminatedTotal.WithLabelValues("evicted").Inc()
	s.record(ctx, &domain.SecurityEvent{
		Type:        domain.EventDeviceChange,
		UserID:      userID,
		Severity:    domain.SeverityMedium,
		IP:          ip, UserAgent: ua,
		Reason:      "oldest session evicted for new login",
		Fingerprint: oldest.Fingerprint,
	})
	return nil
}

// Touch records activity. It never extends the absolute expiry unless the
// active policy asks for sliding expiry.
func (s *SessionServiceImpl) Touch(ctx context.Context, id domain.SessionID) error {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Active() {
		return domain.ErrSessionTerminated
	}
	policy, err := s.activePolicy(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	sess.LastActivity = now
	if policy.SlidingExpiry {
		sess.ExpiresAt = now.Add(policy.Timeout)
	}
	return s.sessions.Save(ctx, sess)
}

// Validate reports whether the session is live. Stale sessions transition to
// their terminal expired state lazily here, emitting a session_timeout event
// on first detection.
func (s *SessionServiceImpl) Validate(ctx context.Context, id domain.SessionID) (bool, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !sess.Active() {
		return false, nil
	}
	policy, err := s.activePolicy(ctx)
	if err != nil {
		return false, err
	}
	return s.checkExpiry(ctx, sess, policy)
}

func (s *SessionServiceImpl) checkExpiry(ctx context.Context, sess *domain.Session, policy *domain.SessionPolicy) (bool, error) {
	now := s.now().UTC()

	var status domain.SessionStatus
	var reason string
	switch {
	case !now.Before(sess.ExpiresAt):
		status, reason = domain.SessionExpired, "session exceeded absolute timeout"
	case now.Sub(sess.LastActivity) >= policy.IdleTimeout:
		status, reason = domain.SessionIdleExpired, "session exceeded idle timeout"
	default:
		return true, nil
	}

	sess.Status = status
	if err := s.sessions.Save(ctx, sess); err != nil {
		return false, err
	}
	metrics.SessionsTerminatedTotal.WithLabelValues(string(status)).Inc()
	s.record(ctx, &domain.SecurityEvent{
		Type:        domain.EventSessionTimeout,
		UserID:      sess.UserID,
		Severity:    domain.SeverityMedium,
		IP:          sess.IP,
		UserAgent:   sess.UserAgent,
		Location:    sess.Location,
		Reason:      reason,
		Fingerprint: sess.Fingerprint,
	})
	return false, nil
}

// Terminate is idempotent: terminating a session that already left the
// active state is a no-op.
func (s *SessionServiceImpl) Terminate(ctx context.Context, id domain.SessionID, reason string) error {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Active() {
		return nil
	}
	if reason == "" {
		reason = "manually terminated"
	}
	sess.Status = domain.SessionTerminated
	sess.LastActivity = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return err
	}
	metrics.SessionsTerminatedTotal.WithLabelValues("terminated").Inc()
	s.record(ctx, &domain.SecurityEvent{
		Type:        domain.EventSessionTimeout,
		UserID:      sess.UserID,
		Severity:    domain.SeverityLow,
		IP:          sess.IP,
		UserAgent:   sess.UserAgent,
		Reason:      reason,
		Fingerprint: sess.Fingerprint,
		Resolved:    true,
	})
	return nil
}

func (s *SessionServiceImpl) TerminateAllForUser(ctx context.Context, userID domain.UserID, reason string) (int64, error) {
	n, err := s.sessions.TerminateAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if reason == "" {
			reason = "all sessions terminated"
		}
		metrics.SessionsTerminatedTotal.WithLabelValues("terminated").Add(float64(n))
		s.record(ctx, &domain.SecurityEvent{
			Type:     domain.EventSessionTimeout,
			UserID:   userID,
			Severity: domain.SeverityMedium,
			Reason:   fmt.Sprintf("%s (%d sessions)", reason, n),
			Resolved: true,
		})
	}
	return n, nil
}

func (s *SessionServiceImpl) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// Sweep walks the active set and applies the same lazy expiry as Validate.
func (s *SessionServiceImpl) Sweep(ctx context.Context) (int, error) {
	policy, err := s.activePolicy(ctx)
	if err != nil {
		return 0, err
	}
	active, err := s.sessions.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range active {
		ok, err := s.checkExpiry(ctx, &active[i], policy)
		if err != nil {
			return expired, err
		}
		if !ok {
			expired++
		}
	}
	return expired, nil
}

func (s *SessionServiceImpl) record(ctx context.Context, e *domain.SecurityEvent) {
	if err := s.audit.Record(ctx, e); err != nil {
		slog.Error("audit record failed", "type", e.Type, "error", err)
	}
}
