package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/netutil"
	"sessionguard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	mfa      service.MFAService
	sessions service.SessionService
	policies service.PolicyService
	audit    service.AuditService
	tokens   service.TokenService

	// trustProxy controls whether forwarded-for headers are honored when
	// resolving the client address.
	trustProxy bool
}

func NewRouter(mfa service.MFAService, sessions service.SessionService, policies service.PolicyService, audit service.AuditService, tokens service.TokenService, trustProxy bool) http.Handler {
	h := &Handler{
		mfa:        mfa,
		sessions:   sessions,
		policies:   policies,
		audit:      audit,
		tokens:     tokens,
		trustProxy: trustProxy,
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/mfa", func(r chi.Router) {
			r.Get("/", h.listMFA)
			r.Post("/enroll", h.enroll)
			r.Post("/verify", h.verifyTOTP)
			r.Post("/codes/send", h.sendCode)
			r.Post("/codes/verify", h.verifyCode)
			r.Post("/recovery", h.generateRecoveryCodes)
			r.Post("/recovery/use", h.useRecoveryCode)
			r.Post("/{id}/disable", h.disableMFA)
			r.Post("/{id}/rotate", h.rotateTOTP)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Post("/", h.createSession)
			r.Post("/terminate-all", h.terminateAll)
			r.Get("/{id}", h.sessionValidity)
			r.Post("/{id}/touch", h.touchSession)
			r.Delete("/{id}", h.terminateSession)
		})

		r.Post("/tokens/introspect", h.introspect)

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.listPolicies)
			r.Post("/", h.createPolicy)
			r.Get("/{id}", h.getPolicy)
			r.Put("/{id}", h.updatePolicy)
			r.Delete("/{id}", h.deletePolicy)
			r.Post("/{id}/activate", h.activatePolicy)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.queryEvents)
			r.Post("/{id}/resolve", h.resolveEvent)
			r.Delete("/{id}", h.deleteEvent)
		})

		r.Get("/dashboard/stats", h.dashboardStats)
	})

	return r
}

func (h *Handler) clientIP(r *http.Request) string {
	if h.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if normalized, ok := netutil.NormalizeIP(ip); ok {
				return normalized
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			if normalized, ok := netutil.NormalizeIP(xr); ok {
				return normalized
			}
		}
	}
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

// ===== MFA =====

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var req dto.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	res, err := h.mfa.Enroll(r.Context(), userID, req, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) verifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	valid, err := h.mfa.VerifyTOTP(r.Context(), userID, req.Code, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{Valid: valid})
}

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var req dto.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	res, err := h.mfa.IssueCode(r.Context(), userID, domain.MFAMethod(req.Channel), req.Recipient, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	result, err := h.mfa.VerifyCode(r.Context(), userID, domain.MFAMethod(req.Channel), req.Recipient, req.Code, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{Valid: result == domain.VerifyValid, Result: string(result)})
}

func (h *Handler) generateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	var req dto.RecoveryCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	codes, err := h.mfa.GenerateRecoveryCodes(r.Context(), userID, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.RecoveryCodesResponse{Codes: codes})
}

func (h *Handler) useRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req dto.UseRecoveryCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	valid, err := h.mfa.UseRecoveryCode(r.Context(), userID, req.Code, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{Valid: valid})
}

func (h *Handler) disableMFA(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.mfa.Disable(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) rotateTOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	res, err := h.mfa.RotateTOTPSecret(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	configs, err := h.mfa.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.EnrollResponse, 0, len(configs))
	for i := range configs {
		out = append(out, dto.EnrollResponse{
			ConfigID: configs[i].ID.String(),
			Method:   string(configs[i].Method),
			Enabled:  configs[i].Enabled,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== Sessions =====

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	sess, err := h.sessions.Create(r.Context(), userID, req, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	res := sessionResponse(sess)
	if issued, err := h.tokens.Issue(r.Context(), sess); err == nil {
		res.AccessToken = issued.AccessToken
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) touchSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.sessions.Touch(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) sessionValidity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	valid, err := h.sessions.Validate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ValidityResponse{Valid: valid})
}

func (h *Handler) terminateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.sessions.Terminate(r.Context(), id, r.URL.Query().Get("reason")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	sessions, err := h.sessions.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, *sessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) terminateAll(w http.ResponseWriter, r *http.Request) {
	var req dto.TerminateAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	userID, ok := parseID(w, req.UserID)
	if !ok {
		return
	}
	n, err := h.sessions.TerminateAllForUser(r.Context(), userID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TerminateAllResponse{Terminated: n})
}

// ===== Tokens =====

func (h *Handler) introspect(w http.ResponseWriter, r *http.Request) {
	var req dto.IntrospectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := h.tokens.Introspect(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ===== Policies =====

func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req dto.PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	p, err := h.policies.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policyResponse(p))
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req dto.PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	p, err := h.policies.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse(p))
}

func (h *Handler) activatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.policies.Activate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := h.policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse(p))
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		out = append(out, *policyResponse(&policies[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.policies.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// ===== Events =====

func (h *Handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.EventFilter{
		Type:     domain.EventType(q.Get("type")),
		Severity: domain.Severity(q.Get("severity")),
		IP:       q.Get("ip"),
	}
	if v := q.Get("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			http.Error(w, "invalid userId", http.StatusBadRequest)
			return
		}
		filter.UserID = id
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		out = append(out, eventResponseDTO(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) resolveEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.audit.Resolve(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.audit.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ===== helpers =====

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func sessionResponse(s *domain.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		ID:           s.ID.String(),
		UserID:       s.UserID.String(),
		Fingerprint:  s.Fingerprint,
		IP:           s.IP,
		UserAgent:    s.UserAgent,
		Browser:      s.Browser,
		OS:           s.OS,
		Location:     s.Location,
		LoginMethod:  s.LoginMethod,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
	}
}

func policyResponse(p *domain.SessionPolicy) *dto.PolicyResponse {
	return &dto.PolicyResponse{
		ID:                            p.ID.String(),
		Name:                          p.Name,
		TimeoutMinutes:                int(p.Timeout.Minutes()),
		IdleTimeoutMinutes:            int(p.IdleTimeout.Minutes()),
		MaxConcurrentSessions:         p.MaxConcurrentSessions,
		EvictOldest:                   p.EvictOldest,
		SlidingExpiry:                 p.SlidingExpiry,
		RememberMe:                    p.RememberMe,
		RememberMeDays:                int(p.RememberMeDuration.Hours() / 24),
		ForceLogoutOnCredentialChange: p.ForceLogoutOnCredentialChange,
		DeviceFingerprinting:          p.DeviceFingerprinting,
		IPAllowlist:                   p.IPAllowlist,
		Active:                        p.Active,
	}
}

func eventResponseDTO(e *domain.SecurityEvent) dto.EventResponse {
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

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrPolicyIdleTimeout):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrentLimit):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrIPNotAllowed),
		errors.Is(err, domain.ErrSessionTerminated):
		status = http.StatusForbidden
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
