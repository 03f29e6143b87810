package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordBreach("response")
	m.RecordBreach("response")
	m.RecordWarning("resolution")
	m.RecordSweep("breach", nil, 10*time.Millisecond)
	m.RecordSweep("breach", errors.New("boom"), time.Millisecond)
	m.RecordAssignment("Network Operations", true)
	m.RecordNotification("sla_breach", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.breaches.WithLabelValues("response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warnings.WithLabelValues("resolution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("breach", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("breach", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignments.WithLabelValues("Network Operations", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sla_breach", "sent")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RecordBreach("response")
	})
}
