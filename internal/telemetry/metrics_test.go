package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Login(ResultSuccess)
	m.Login(ResultUnauthorized)
	m.Login(ResultUnauthorized)
	m.Refresh(ResultError)
	m.Logout()
	m.CleanupSweep(7, 1, 0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(ResultUnauthorized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logouts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.cleanupDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cleanupFailures))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login(ResultSuccess)
		m.Refresh(ResultSuccess)
		m.Logout()
		m.CleanupSweep(1, 0, 0)
	})
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
