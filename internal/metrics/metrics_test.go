package metrics_test

import (
	"net/http/httptest"
	"taskMarket/internal/metrics"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveCommand("select_bid", "")
	m.ObserveCommand("select_bid", "")
	m.ObserveCommand("select_bid", "CONFLICT")
	m.ObserveNotification("bid.placed", "delivered")
	m.SetQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("select_bid", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("select_bid", "CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("bid.placed", "delivered")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("x", "")
		m.ObserveNotification("x", "y")
		m.SetQueueDepth(1)
		m.ObserveHTTP("GET", "/tasks", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New(nil)
	m.ObserveCommand("place_bid", "")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `marketplace_lifecycle_commands_total{command="place_bid",outcome="ok"} 1`)
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	m := metrics.New(nil)
	m.ObserveHTTP("GET", "/tasks/{id}", "200", 20*time.Millisecond)
	m.ObserveHTTP("GET", "/tasks/{id}", "200", 30*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequests))
}
