package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecast provider call rate by status. Watch for: error vs success ratio.
	ForecastAPICallsTotal *prometheus.CounterVec

	// Provider latency per call. Watch for: p99 approaching the provider timeout.
	ForecastAPIDuration *prometheus.HistogramVec

	// Retry attempts against the provider.
	ForecastAPIRetriesTotal prometheus.Counter

	// Provider failures by category (see client.CategorizeError).
	ForecastAPIErrorsTotal *prometheus.CounterVec

	// Provider circuit breaker state: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState prometheus.Gauge

	// Pipeline runs by outcome (ok, partial, failed).
	PipelineRunsTotal *prometheus.CounterVec

	// Wall time of a whole pipeline run.
	PipelineRunDuration prometheus.Histogram

	// Unix time of the last finished pipeline run. Watch for: staleness > 2x interval.
	PipelineLastRunTimestamp prometheus.Gauge

	// Per-city pipeline outcomes. outcome is "ok" or an error category.
	PipelineCityOutcomesTotal *prometheus.CounterVec

	// Documents written to the store.
	DocumentsPersistedTotal prometheus.Counter

	// Cache hits by backend.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend errors by operation. Reads fall through to the store on error.
	CacheErrorsTotal *prometheus.CounterVec

	// Summary lookups by output format (raw, english, rss).
	SummaryQueriesTotal *prometheus.CounterVec

	// Summary lookups per city (registry allow-list; others go to "other").
	SummaryQueriesByCityTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ForecastAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiCallsTotal",
			Help: "Total number of forecast provider calls",
		},
		[]string{"status"},
	)
	ForecastAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastApiDurationSeconds",
			Help:    "Forecast provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"status"},
	)
	ForecastAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastApiRetriesTotal",
			Help: "Total number of retry attempts for forecast provider calls",
		},
	)
	ForecastAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiErrorsTotal",
			Help: "Forecast provider failures by category",
		},
		[]string{"category"},
	)
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecastApiCircuitState",
			Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipelineRunsTotal",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)
	PipelineRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipelineRunDurationSeconds",
			Help:    "Duration of a full pipeline run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	PipelineLastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipelineLastRunTimestampSeconds",
			Help: "Unix time the last pipeline run finished",
		},
	)
	PipelineCityOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipelineCityOutcomesTotal",
			Help: "Per-city pipeline outcomes (ok or error category)",
		},
		[]string{"city", "outcome"},
	)
	DocumentsPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documentsPersistedTotal",
			Help: "Total number of summary documents written",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of summary cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation",
		},
		[]string{"op"},
	)
	SummaryQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summaryQueriesTotal",
			Help: "Total number of summary lookups by format",
		},
		[]string{"format"},
	)
	SummaryQueriesByCityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summaryQueriesByCityTotal",
			Help: "Summary lookups by city (registry cities; others use city=other)",
		},
		[]string{"city"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ForecastAPICallsTotal, ForecastAPIDuration, ForecastAPIRetriesTotal, ForecastAPIErrorsTotal,
		CircuitBreakerState,
		PipelineRunsTotal, PipelineRunDuration, PipelineLastRunTimestamp, PipelineCityOutcomesTotal,
		DocumentsPersistedTotal,
		CacheHitsTotal, CacheErrorsTotal,
		SummaryQueriesTotal, SummaryQueriesByCityTotal,
		RateLimitDeniedTotal,
	)
}

// SetTrackedCities sets the allow-list for per-city query metrics. Unknown names increment "other"
// so arbitrary path segments cannot blow up label cardinality.
func SetTrackedCities(names []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(names))
	for _, n := range names {
		trackedCities[n] = struct{}{}
	}
}

// RecordSummaryQuery records one summary lookup.
func RecordSummaryQuery(format, city string) {
	SummaryQueriesTotal.WithLabelValues(format).Inc()
	trackedCitiesMu.RLock()
	_, ok := trackedCities[city]
	trackedCitiesMu.RUnlock()
	if ok {
		SummaryQueriesByCityTotal.WithLabelValues(city).Inc()
	} else {
		SummaryQueriesByCityTotal.WithLabelValues("other").Inc()
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
