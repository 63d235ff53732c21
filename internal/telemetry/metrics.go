package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values for auth counters.
const (
	ResultSuccess      = "success"
	ResultUnauthorized = "unauthorized"
	ResultError        = "error"
)

// Metrics are the Prometheus instruments of the session subsystem. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         prometheus.Counter
	cleanupDeleted  prometheus.Counter
	cleanupFailures prometheus.Counter
	cleanupDuration prometheus.Histogram
}

// NewMetrics creates the instruments and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Logout calls.",
		}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_cleanup_deleted_total",
			Help: "Revoked sessions removed by the cleanup task.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_cleanup_failures_total",
			Help: "Cleanup batches that failed.",
		}),
		cleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "session_cleanup_duration_seconds",
			Help:    "Duration of a cleanup sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.logouts, m.cleanupDeleted, m.cleanupFailures, m.cleanupDuration)
	return m
}

func (m *Metrics) Login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

// CleanupSweep records one sweep: rows deleted, failed batches and duration in seconds.
func (m *Metrics) CleanupSweep(deleted int64, failures int, seconds float64) {
	if m == nil {
		return
	}
	m.cleanupDeleted.Add(float64(deleted))
	m.cleanupFailures.Add(float64(failures))
	m.cleanupDuration.Observe(seconds)
}
