package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/testutil"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, testutil.NewMockLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, testutil.NewMockLogger())
	assert.Error(t, err)
}

func TestNewMetricsCollector_WithProcessAndGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:            "test",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, testutil.NewMockLogger())
	require.NoError(t, err)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "go_goroutines")
}

func TestRegisterCounter_WithLabels(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("runs_total", "Runs", "method").WithLabelValues("berkus").Add(3)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_runs_total{method="berkus"} 3`)
}

func TestRegisterCounter_DuplicateSharesVector(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "help").WithLabelValues().Inc()
	c.RegisterCounter("dup_total", "help").WithLabelValues().Inc()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_dup_total 2")
}

func TestRegister_ConflictingTypeFallsBackToNoop(t *testing.T) {
	log := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, log)
	require.NoError(t, err)

	c.RegisterCounter("clash", "help")
	g := c.RegisterGauge("clash", "help")
	require.NotNil(t, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(5) })

	assert.True(t, log.HasMessage("error", "metric registration failed"))
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("inflight", "In flight", "method")
	g.WithLabelValues("GET").Inc()
	g.WithLabelValues("GET").Inc()
	g.WithLabelValues("GET").Dec()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_inflight{method="GET"} 1`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "Latency", nil).WithLabelValues().Observe(0.002)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{le="0.0025"} 1`)
	assert.Contains(t, out, "test_unit_latency_seconds_count 1")
}

func TestRegister_ConcurrentSafe(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "help").WithLabelValues().Inc()
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_concurrent_total 20")
}

func TestNoopCollector(t *testing.T) {
	c := NewNoopCollector()
	c.RegisterCounter("a", "help").WithLabelValues("x").Add(1)
	c.RegisterGauge("b", "help").WithLabelValues().Set(1)
	c.RegisterHistogram("c", "help", nil).WithLabelValues().Observe(1)

	mfs, err := c.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs)
	assert.NotContains(t, scrapeMetrics(t, c), "a_total")
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "Op", nil).WithLabelValues()

	timer := NewTimer(h)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_op_seconds_count 1")

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}
