package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	MFAVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfa_verifications_total",
			Help: "Total number of MFA verification attempts.",
		},
		[]string{"service", "method", "result"},
	)

	CodesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfa_codes_issued_total",
			Help: "Total number of out-of-band codes issued.",
		},
		[]string{"service", "channel", "result"},
	)

	SessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total number of session creation attempts.",
		},
		[]string{"service", "result"},
	)

	SessionsTerminatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_terminated_total",
			Help: "Total number of sessions leaving the active state.",
		},
		[]string{"service", "reason"},
	)

	SecurityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "Total number of security events recorded.",
		},
		[]string{"service", "type", "severity"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	MFAVerificationsTotal = MFAVerificationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	CodesIssuedTotal = CodesIssuedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SessionsCreatedTotal = SessionsCreatedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SessionsTerminatedTotal = SessionsTerminatedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SecurityEventsTotal = SecurityEventsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		MFAVerificationsTotal,
		CodesIssuedTotal,
		SessionsCreatedTotal,
		SessionsTerminatedTotal,
		SecurityEventsTotal,
	)
}
