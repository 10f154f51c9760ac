package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Mandantis server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Login rate limiting.
	LoginLockoutsTotal   prometheus.Counter
	LoginThrottledTotal  prometheus.Counter
	PasswordResetsTotal  *prometheus.CounterVec

	// Tenant metrics.
	TenantResolutionsTotal *prometheus.CounterVec
	SubmissionsTotal       *prometheus.CounterVec
	ExportsTotal           *prometheus.CounterVec

	// Audit trail.
	AuditWriteFailuresTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mandantis_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mandantis_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"reason"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"method"}),

		LoginLockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mandantis_login_lockouts_total",
			Help: "Total number of login lockouts triggered.",
		}),

		LoginThrottledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mandantis_login_throttled_total",
			Help: "Total number of login attempts rejected while locked out.",
		}),

		PasswordResetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_password_resets_total",
			Help: "Total number of password reset operations.",
		}, []string{"stage"}),

		TenantResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_tenant_resolutions_total",
			Help: "Total number of tenant slug resolutions.",
		}, []string{"outcome"}),

		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_submissions_total",
			Help: "Total number of client document submissions.",
		}, []string{"doc_type"}),

		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mandantis_exports_total",
			Help: "Total number of export jobs requested.",
		}, []string{"format"}),

		AuditWriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mandantis_audit_write_failures_total",
			Help: "Total number of audit log writes that failed.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mandantis_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.LoginLockoutsTotal,
		m.LoginThrottledTotal,
		m.PasswordResetsTotal,
		m.TenantResolutionsTotal,
		m.SubmissionsTotal,
		m.ExportsTotal,
		m.AuditWriteFailuresTotal,
		m.ServerStartTime,
	)

	// Set server start time.
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncAuthFailure increments the auth failure counter for the given reason.
func (m *Metrics) IncAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// IncAuthSuccess increments the auth success counter for the given method.
func (m *Metrics) IncAuthSuccess(method string) {
	m.AuthSuccessesTotal.WithLabelValues(method).Inc()
}

// IncLoginLockout increments the lockout counter.
func (m *Metrics) IncLoginLockout() {
	m.LoginLockoutsTotal.Inc()
}

// IncLoginThrottled increments the throttled login counter.
func (m *Metrics) IncLoginThrottled() {
	m.LoginThrottledTotal.Inc()
}

// IncPasswordReset increments the password reset counter for the given stage
// ("requested" or "completed").
func (m *Metrics) IncPasswordReset(stage string) {
	m.PasswordResetsTotal.WithLabelValues(stage).Inc()
}

// IncTenantResolution increments the tenant resolution counter for the given
// outcome ("hit", "miss" or "demo").
func (m *Metrics) IncTenantResolution(outcome string) {
	m.TenantResolutionsTotal.WithLabelValues(outcome).Inc()
}

// IncSubmission increments the submission counter for the given document type.
func (m *Metrics) IncSubmission(docType string) {
	m.SubmissionsTotal.WithLabelValues(docType).Inc()
}

// IncExport increments the export counter for the given format.
func (m *Metrics) IncExport(format string) {
	m.ExportsTotal.WithLabelValues(format).Inc()
}

// IncAuditWriteFailure increments the audit write failure counter.
func (m *Metrics) IncAuditWriteFailure() {
	m.AuditWriteFailuresTotal.Inc()
}
