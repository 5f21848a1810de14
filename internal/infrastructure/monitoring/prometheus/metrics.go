package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all DealScope application metrics.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Valuation
	ValuationRunsTotal    CounterVec
	ValuationDuration     HistogramVec
	AggregateRunsTotal    CounterVec
	AggregateMethodsCount HistogramVec

	// Cap table / waterfall
	CapTableSimulationsTotal CounterVec
	CapTableDuration         HistogramVec
	WaterfallScenariosTotal  CounterVec
	WaterfallDuration        HistogramVec

	// Infrastructure
	DBQueryDuration      HistogramVec
	CacheHitsTotal       CounterVec
	CacheMissesTotal     CounterVec
	EventsPublishedTotal CounterVec
	EventsConsumedTotal  CounterVec

	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	methodCountBuckets         = []float64{1, 2, 3, 4, 5}
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// NewAppMetrics registers all metrics with collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.ValuationRunsTotal = collector.RegisterCounter("valuation_runs_total", "Valuation method runs", "method", "outcome")
	m.ValuationDuration = collector.RegisterHistogram("valuation_duration_seconds", "Valuation method duration", nil, "method")
	m.AggregateRunsTotal = collector.RegisterCounter("valuation_aggregate_runs_total", "Aggregated valuation runs", "outcome")
	m.AggregateMethodsCount = collector.RegisterHistogram("valuation_aggregate_methods", "Successful methods per aggregated run", methodCountBuckets)

	m.CapTableSimulationsTotal = collector.RegisterCounter("captable_simulations_total", "Cap table simulations", "operation", "outcome")
	m.CapTableDuration = collector.RegisterHistogram("captable_duration_seconds", "Cap table operation duration", nil, "operation")
	m.WaterfallScenariosTotal = collector.RegisterCounter("waterfall_scenarios_total", "Waterfall scenarios computed", "outcome")
	m.WaterfallDuration = collector.RegisterHistogram("waterfall_duration_seconds", "Waterfall computation duration", nil)

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Domain events published", "topic", "outcome")
	m.EventsConsumedTotal = collector.RegisterCounter("events_consumed_total", "Domain events consumed", "topic", "outcome")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_code")

	return m
}

// NewNoopAppMetrics returns metrics that discard every sample.
func NewNoopAppMetrics() *AppMetrics { return NewAppMetrics(NewNoopCollector()) }

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordValuationRun counts one method evaluation.
func RecordValuationRun(m *AppMetrics, method string, duration time.Duration, err error) {
	m.ValuationRunsTotal.WithLabelValues(method, outcome(err)).Inc()
	m.ValuationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAggregate counts an aggregated run.  A run with some failed methods
// is "partial"; with no successful method it is "failure".
func RecordAggregate(m *AppMetrics, succeeded, failed int) {
	out := OutcomeSuccess
	switch {
	case succeeded == 0:
		out = OutcomeFailure
	case failed > 0:
		out = OutcomePartial
	}
	m.AggregateRunsTotal.WithLabelValues(out).Inc()
	m.AggregateMethodsCount.WithLabelValues().Observe(float64(succeeded))
}

func RecordCapTable(m *AppMetrics, operation string, duration time.Duration, err error) {
	m.CapTableSimulationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	m.CapTableDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWaterfall counts scenarios; on failure a single failure is counted.
func RecordWaterfall(m *AppMetrics, scenarios int, duration time.Duration, err error) {
	if err != nil {
		m.WaterfallScenariosTotal.WithLabelValues(OutcomeFailure).Inc()
	} else {
		m.WaterfallScenariosTotal.WithLabelValues(OutcomeSuccess).Add(float64(scenarios))
	}
	m.WaterfallDuration.WithLabelValues().Observe(duration.Seconds())
}

func RecordDBQuery(m *AppMetrics, db, operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordEventPublished(m *AppMetrics, topic string, err error) {
	m.EventsPublishedTotal.WithLabelValues(topic, outcome(err)).Inc()
}

func RecordEventConsumed(m *AppMetrics, topic string, err error) {
	m.EventsConsumedTotal.WithLabelValues(topic, outcome(err)).Inc()
}

func RecordError(m *AppMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
