package apiclient

import (
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "apiclient"

var (
	callLabels    = []string{"method", "endpoint"}
	outcomeLabels = []string{"method", "status_code", "endpoint"}
)

// MetricsCollector exports the call lifecycle of a Dispatcher to
// Prometheus. Every Record method is a no-op on a nil collector.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal   *prometheus.CounterVec
	refreshesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	timeoutsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec

	rateLimiterTokens prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector registers the dispatcher metrics with
// prometheus.DefaultRegisterer. Calling it twice panics on the duplicate
// registration; use NewMetricsCollectorWithRegistry for isolated instances.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry registers the dispatcher metrics with reg.
func NewMetricsCollectorWithRegistry(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name, Help: help})
	}

	return &MetricsCollector{
		requestsTotal: counter("requests_total",
			"Dispatched calls by final status code, 0 when no response was received.",
			outcomeLabels...),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Wall time of dispatched calls, retries and refreshes included.",
			Buckets:   prometheus.DefBuckets,
		}, outcomeLabels),
		requestsInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "requests_in_flight",
			Help:      "Calls registered and not yet settled.",
		}, callLabels),

		retriesTotal: counter("retries_total",
			"Attempts repeated after a network failure or server error.",
			"method", "endpoint", "attempt"),
		refreshesTotal: counter("token_refreshes_total",
			"Token refreshes triggered by 401 responses.",
			"outcome"),

		cacheHits:   counter("cache_hits_total", "GET calls answered from the response cache.", callLabels...),
		cacheMisses: counter("cache_misses_total", "Cacheable GET calls that went to the network.", callLabels...),
		cacheSize:   gauge("cache_size", "Entries resident in the response cache."),

		timeoutsTotal:      counter("timeouts_total", "Calls rejected by their timeout.", "endpoint"),
		cancellationsTotal: counter("cancellations_total", "Calls aborted by CancelRequest or Close.", "endpoint"),

		rateLimiterTokens: gauge("rate_limiter_tokens", "Tokens left in the outbound rate limiter."),

		errorsTotal: counter("errors_total", "Failures surfaced to callers by error type.",
			"type", "method", "endpoint"),
	}
}

// RecordRequest records a settled call. statusCode 0 means no response.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, status, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, status, endpoint).Observe(duration.Seconds())
}

func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry counts the retry numbered attempt (1 for the first retry).
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordRefresh counts a token refresh by outcome: "success", "empty" or "failure".
func (mc *MetricsCollector) RecordRefresh(outcome string) {
	if mc == nil {
		return
	}
	mc.refreshesTotal.WithLabelValues(outcome).Inc()
}

func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.Set(float64(size))
}

func (mc *MetricsCollector) RecordTimeout(endpoint string) {
	if mc == nil {
		return
	}
	mc.timeoutsTotal.WithLabelValues(endpoint).Inc()
}

// RecordCancellation adds n aborted calls for endpoint.
func (mc *MetricsCollector) RecordCancellation(endpoint string, n int) {
	if mc == nil || n <= 0 {
		return
	}
	mc.cancellationsTotal.WithLabelValues(endpoint).Add(float64(n))
}

func (mc *MetricsCollector) RecordRateLimiterTokens(tokens float64) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.Set(tokens)
}

// RecordError counts a failure surfaced to a caller. errorType is one of
// the ErrorType* labels.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// endpointFromURL reduces a resolved URL to host+path so query strings do
// not blow up label cardinality.
func endpointFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Host + "/"
	}
	return u.Host + u.Path
}
