package dto

type PolicyRequest struct {
	Name                  string   `json:"name"`
	TimeoutMinutes        int      `json:"timeoutMinutes"`
	IdleTimeoutMinutes    int      `json:"idleTimeoutMinutes"`
	MaxConcurrentSessions int      `json:"maxConcurrentSessions"`
	EvictOldest           bool     `json:"evictOldest"`
	SlidingExpiry         bool     `json:"slidingExpiry"`
	RememberMe            bool     `json:"rememberMe"`
	RememberMeDays        int      `json:"rememberMeDays"`
	ForceLogoutOnCredentialChange bool     `json:"forceLogoutOnCredentialChange"`
	DeviceFingerprinting          bool     `json:"deviceFingerprinting"`
	IPAllowlist                   []string `json:"ipAllowlist,omitempty"`
}

type PolicyResponse struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	TimeoutMinutes        int      `json:"timeoutMinutes"`
	IdleTimeoutMinutes    int      `json:"idleTimeoutMinutes"`
	MaxConcurrentSessions int      `json:"maxConcurrentSessions"`
	EvictOldest           bool     `json:"evictOldest"`
	SlidingExpiry         bool     `json:"slidingExpiry"`
	RememberMe            bool     `json:"rememberMe"`
	RememberMeDays        int      `json:"rememberMeDays"`
	ForceLogoutOnCredentialChange bool     `json:"forceLogoutOnCredentialChange"`
	DeviceFingerprinting          bool     `json:"deviceFingerprinting"`
	IPAllowlist                   []string `json:"ipAllowlist,omitempty"`
	Active                        bool     `json:"active"`
}
