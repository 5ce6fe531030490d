package impl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/observability/metrics"
	"sessionguard/internal/store"

	"github.com/google/uuid"
)

type AuditConfig struct {
	Retention           int           // max events kept, oldest evicted first
	BruteForceThreshold int           // failures inside the window that raise a brute_force event
	BruteForceWindow    time.Duration
}

type AuditServiceImpl struct {
	events   eventStore
	sessions activeSessionCounter
	configs  enabledConfigCounter
	cfg      AuditConfig
	now      func() time.Time
}

type eventStore interface {
	Append(ctx context.Context, e *domain.SecurityEvent) error
	Query(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error)
	Count(ctx context.Context, f domain.EventFilter) (int64, error)
	Resolve(ctx context.Context, id domain.EventID) error
	Delete(ctx context.Context, id domain.EventID) error
	DeleteOldest(ctx context.Context, n int) error
}

type activeSessionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

type enabledConfigCounter interface {
	CountEnabled(ctx context.Context) (int64, error)
}

func NewAuditServiceImpl(st *store.Store, cfg AuditConfig) *AuditServiceImpl {
	if cfg.Retention <= 0 {
		cfg.Retention = 1000
	}
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = 5
	}
	if cfg.BruteForceWindow <= 0 {
		cfg.BruteForceWindow = 5 * time.Minute
	}
	return &AuditServiceImpl{
		events:   st.Events(),
		sessions: st.Sessions(),
		configs:  st.MFAConfigs(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Record appends the event, enforces the retention cap, and synthesizes a
// brute_force event when failures cluster inside the detection window.
func (a *AuditServiceImpl) Record(ctx context.Context, e *domain.SecurityEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = a.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityLow
	}
	if err := a.events.Append(ctx, e); err != nil {
		return err
	}
	metrics.SecurityEventsTotal.WithLabelValues(string(e.Type), string(e.Severity)).Inc()

	if err := a.prune(ctx); err != nil {
		slog.Warn("audit retention prune failed", "error", err)
	}
	if e.Type == domain.EventMFAFailure {
		if err := a.detectBruteForce(ctx, e); err != nil {
			slog.Warn("brute force detection failed", "error", err)
		}
	}
	return nil
}

func (a *AuditServiceImpl) prune(ctx context.Context) error {
	total, err := a.events.Count(ctx, domain.EventFilter{})
	if err != nil {
		return err
	}
	if excess := int(total) - a.cfg.Retention; excess > 0 {
		return a.events.DeleteOldest(ctx, excess)
	}
	return nil
}

// detectBruteForce counts recent failures sharing the event's address or
// identity; crossing the threshold appends a single brute_force event. The
// synthesized event is typed brute_force and so never re-enters detection.
func (a *AuditServiceImpl) detectBruteForce(ctx context.Context, e *domain.SecurityEvent) error {
	since := a.now().UTC().Add(-a.cfg.BruteForceWindow)

	byIP := int64(0)
	if e.IP != "" {
		n, err := a.events.Count(ctx, domain.EventFilter{Type: domain.EventMFAFailure, IP: e.IP, Since: since})
		if err != nil {
			return err
		}
		byIP = n
	}
	byUser := int64(0)
	if e.UserID != uuid.Nil {
		n, err := a.events.Count(ctx, domain.EventFilter{Type: domain.EventMFAFailure, UserID: e.UserID, Since: since})
		if err != nil {
			return err
		}
		byUser = n
	}
	if byIP < int64(a.cfg.BruteForceThreshold) && byUser < int64(a.cfg.BruteForceThreshold) {
		return nil
	}

	// Only raise once per window: a brute_force event newer than the window
	// for the same address means the cluster is already flagged.
	existing, err := a.events.Count(ctx, domain.EventFilter{Type: domain.EventBruteForce, IP: e.IP, UserID: e.UserID, Since: since})
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	alert := &domain.SecurityEvent{
		ID:        uuid.New(),
		Type:      domain.EventBruteForce,
		UserID:    e.UserID,
		Timestamp: a.now().UTC(),
		Severity:  domain.SeverityHigh,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Location:  e.Location,
		Reason: fmt.Sprintf("%d failed verification attempts within %s",
			max64(byIP, byUser), a.cfg.BruteForceWindow),
	}
	if err := a.events.Append(ctx, alert); err != nil {
		return err
	}
	metrics.SecurityEventsTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	slog.Warn("brute force cluster detected", "ip", e.IP, "user_id", e.UserID, "failures", max64(byIP, byUser))
	return nil
}

func (a *AuditServiceImpl) Query(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error) {
	return a.events.Query(ctx, f)
}

func (a *AuditServiceImpl) Resolve(ctx context.Context, id domain.EventID) error {
	return a.events.Resolve(ctx, id)
}

func (a *AuditServiceImpl) Delete(ctx context.Context, id domain.EventID) error {
	return a.events.Delete(ctx, id)
}

func (a *AuditServiceImpl) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	now := a.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	active, err := a.sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	enabled, err := a.configs.CountEnabled(ctx)
	if err != nil {
		return nil, err
	}
	today, err := a.events.Count(ctx, domain.EventFilter{Since: midnight})
	if err != nil {
		return nil, err
	}
	failed, err := a.events.Count(ctx, domain.EventFilter{Type: domain.EventMFAFailure})
	if err != nil {
		return nil, err
	}
	recent, err := a.events.Query(ctx, domain.EventFilter{Limit: 5})
	if err != nil {
		return nil, err
	}

	stats := &dto.DashboardStats{
		ActiveSessions:      active,
		EnabledMFAMethods:   enabled,
		SecurityEventsToday: today,
		FailedAttempts:      failed,
		RecentEvents:        make([]dto.EventResponse, 0, len(recent)),
	}
	for i := range recent {
		stats.RecentEvents = append(stats.RecentEvents, eventResponse(&recent[i]))
	}
	return stats, nil
}

func eventResponse(e *domain.SecurityEvent) dto.EventResponse {
	return dto.EventResponse{
		ID:          e.ID.String(),
		Type:        string(e.Type),
		UserID:      e.UserID.String(),
		Timestamp:   e.Timestamp,
		Severity:    string(e.Severity),
		IP:          e.IP,
		UserAgent:   e.UserAgent,
		Location:    e.Location,
		Reason:      e.Reason,
		Fingerprint: e.Fingerprint,
		LoginMethod: e.LoginMethod,
		Resolved:    e.Resolved,
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
