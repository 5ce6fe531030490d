package impl

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/observability/metrics"

	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("test")
	os.Exit(m.Run())
}

// ===== in-memory fakes for the narrow store interfaces =====

type memConfigStore struct {
	mu      sync.Mutex
	configs map[domain.ConfigID]*domain.MFAConfig
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{configs: make(map[domain.ConfigID]*domain.MFAConfig)}
}

func (m *memConfigStore) Create(_ context.Context, c *domain.MFAConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.configs[c.ID] = &cp
	return nil
}

func (m *memConfigStore) GetByID(_ context.Context, id domain.ConfigID) (*domain.MFAConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConfigStore) GetEnabled(_ context.Context, userID domain.UserID, method domain.MFAMethod) (*domain.MFAConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.UserID == userID && c.Method == method && c.Enabled {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memConfigStore) ListByUser(_ context.Context, userID domain.UserID) ([]domain.MFAConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MFAConfig
	for _, c := range m.configs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConfigStore) SetEnabled(_ context.Context, id domain.ConfigID, enabled bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Enabled = enabled
	c.UpdatedAt = at
	return nil
}

func (m *memConfigStore) RotateSecret(_ context.Context, id domain.ConfigID, secret, uri string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Secret = secret
	c.ProvisioningURI = uri
	c.UpdatedAt = at
	return nil
}

func (m *memConfigStore) CountEnabled(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.configs {
		if c.Enabled {
			n++
		}
	}
	return n, nil
}

type memCodeStore struct {
	mu    sync.Mutex
	codes map[string]*domain.OutOfBandCode // channel:recipient
}

func newMemCodeStore() *memCodeStore {
	return &memCodeStore{codes: make(map[string]*domain.OutOfBandCode)}
}

func codeKey(channel domain.MFAMethod, recipient string) string {
	return string(channel) + ":" + recipient
}

func (m *memCodeStore) Replace(_ context.Context, c *domain.OutOfBandCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[codeKey(c.Channel, c.Recipient)] = &cp
	return nil
}

func (m *memCodeStore) Get(_ context.Context, channel domain.MFAMethod, recipient string) (*domain.OutOfBandCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[codeKey(channel, recipient)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeStore) Save(_ context.Context, c *domain.OutOfBandCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[codeKey(c.Channel, c.Recipient)] = &cp
	return nil
}

func (m *memCodeStore) Delete(_ context.Context, id domain.CodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.codes {
		if c.ID == id {
			delete(m.codes, k)
			return nil
		}
	}
	return nil
}

type memRecoveryStore struct {
	mu    sync.Mutex
	codes map[domain.CodeID]*domain.RecoveryCode
}

func newMemRecoveryStore() *memRecoveryStore {
	return &memRecoveryStore{codes: make(map[domain.CodeID]*domain.RecoveryCode)}
}

func (m *memRecoveryStore) ReplaceBatch(_ context.Context, userID domain.UserID, codes []domain.RecoveryCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.codes {
		if c.UserID == userID {
			delete(m.codes, id)
		}
	}
	for i := range codes {
		cp := codes[i]
		m.codes[cp.ID] = &cp
	}
	return nil
}

func (m *memRecoveryStore) ListUnused(_ context.Context, userID domain.UserID) ([]domain.RecoveryCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RecoveryCode
	for _, c := range m.codes {
		if c.UserID == userID && c.UsedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memRecoveryStore) MarkUsed(_ context.Context, id domain.CodeID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.UsedAt = &at
	return nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[domain.SessionID]*domain.Session)}
}

func (m *memSessionStore) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) GetByID(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) ListByUser(_ context.Context, userID domain.UserID) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSessionStore) ListActive(_ context.Context) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.Status == domain.SessionActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessionStore) CountActiveForUser(_ context.Context, userID domain.UserID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.Status == domain.SessionActive {
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Status == domain.SessionActive {
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) OldestActiveForUser(_ context.Context, userID domain.UserID) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *domain.Session
	for _, s := range m.sessions {
		if s.UserID != userID || s.Status != domain.SessionActive {
			continue
		}
		if oldest == nil || s.LastActivity.Before(oldest.LastActivity) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (m *memSessionStore) TerminateAllForUser(_ context.Context, userID domain.UserID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.Status == domain.SessionActive {
			s.Status = domain.SessionTerminated
			s.LastActivity = at
			n++
		}
	}
	return n, nil
}

type memPolicyStore struct {
	mu       sync.Mutex
	policies map[domain.PolicyID]*domain.SessionPolicy
}

func newMemPolicyStore() *memPolicyStore {
	return &memPolicyStore{policies: make(map[domain.PolicyID]*domain.SessionPolicy)}
}

func (m *memPolicyStore) Create(_ context.Context, p *domain.SessionPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *memPolicyStore) Save(_ context.Context, p *domain.SessionPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *memPolicyStore) GetByID(_ context.Context, id domain.PolicyID) (*domain.SessionPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPolicyStore) List(_ context.Context) ([]domain.SessionPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SessionPolicy
	for _, p := range m.policies {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPolicyStore) Active(_ context.Context) (*domain.SessionPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPolicyStore) Activate(_ context.Context, id domain.PolicyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[id]; !ok {
		return domain.ErrNotFound
	}
	for _, p := range m.policies {
		p.Active = p.ID == id
	}
	return nil
}

func (m *memPolicyStore) Delete(_ context.Context, id domain.PolicyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

type memEventStore struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (m *memEventStore) Append(_ context.Context, e *domain.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func matchesFilter(e *domain.SecurityEvent, f domain.EventFilter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.UserID != uuid.Nil && e.UserID != f.UserID {
		return false
	}
	if f.IP != "" && e.IP != f.IP {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func (m *memEventStore) Query(_ context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SecurityEvent
	for i := range m.events {
		if matchesFilter(&m.events[i], f) {
			out = append(out, m.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEventStore) Count(_ context.Context, f domain.EventFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.events {
		if matchesFilter(&m.events[i], f) {
			n++
		}
	}
	return n, nil
}

func (m *memEventStore) Resolve(_ context.Context, id domain.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Resolved = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEventStore) Delete(_ context.Context, id domain.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEventStore) DeleteOldest(_ context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(m.events, func(i, j int) bool { return m.events[i].Timestamp.Before(m.events[j].Timestamp) })
	if n > len(m.events) {
		n = len(m.events)
	}
	m.events = m.events[n:]
	return nil
}

func (m *memEventStore) byType(t domain.EventType) []domain.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SecurityEvent
	for i := range m.events {
		if m.events[i].Type == t {
			out = append(out, m.events[i])
		}
	}
	return out
}

// recordingAudit captures events without any detection or retention logic.
type recordingAudit struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (r *recordingAudit) Record(_ context.Context, e *domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recordingAudit) Query(_ context.Context, _ domain.EventFilter) ([]domain.SecurityEvent, error) {
	return nil, nil
}

func (r *recordingAudit) Resolve(_ context.Context, _ domain.EventID) error { return nil }

func (r *recordingAudit) Delete(_ context.Context, _ domain.EventID) error { return nil }

func (r *recordingAudit) Stats(_ context.Context) (*dto.DashboardStats, error) { return nil, nil }

func (r *recordingAudit) byType(t domain.EventType) []domain.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SecurityEvent
	for i := range r.events {
		if r.events[i].Type == t {
			out = append(out, r.events[i])
		}
	}
	return out
}

type stubGateway struct {
	mu    sync.Mutex
	sends []struct {
		recipient string
		code      string
	}
	err error
}

func (g *stubGateway) SendCode(_ context.Context, recipient, code string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, struct {
		recipient string
		code      string
	}{recipient, code})
	return g.err
}

func (g *stubGateway) last() (string, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sends) == 0 {
		return "", "", false
	}
	s := g.sends[len(g.sends)-1]
	return s.recipient, s.code, true
}
