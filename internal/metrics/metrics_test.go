package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollectorWith(reg, reg)
}

func TestNewCollector(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()
	assert.NotNil(t, collector)
	assert.NotNil(t, collector.transitions)
	assert.NotNil(t, collector.reconcilerLatency)
}

func TestRecordTransition(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordTransition("accept", "ok")
	c.RecordTransition("accept", "ok")
	c.RecordTransition("accept", "invalid_transition")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("accept", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("accept", "invalid_transition")))
}

func TestRecordReconcileTick(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordReconcileTick(20*time.Millisecond, 3, 1, 0, nil)
	c.RecordReconcileTick(time.Second, 0, 0, 0, errors.New("store unreachable"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconcilerTicks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconcilerTicks.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.reconcilerRecords.WithLabelValues("flipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconcilerRecords.WithLabelValues("skipped")))
}

func TestRecordNotificationAndRecompute(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordNotification("engagement.requested", "sent")
	c.RecordNotification("engagement.requested", "duplicate")
	c.RecordRatingRecompute("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("engagement.requested", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ratingRecomputes.WithLabelValues("ok")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTransition("accept", "ok")
		c.RecordReconcileTick(time.Second, 1, 0, 0, nil)
		c.RecordNotification("engagement.accepted", "sent")
		c.RecordRatingRecompute("ok")
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RecordTransition("confirm", "ok")

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `craftlink_engagement_transitions_total{action="confirm",outcome="ok"} 1`)
}
