package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable checks that label dimensions match how client, pipeline, cache and http use them.
func TestMetrics_Usable(t *testing.T) {
	// Route is the mux template, never the raw path.
	HTTPRequestsTotal.WithLabelValues("GET", "/english/{city}/{date}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/english/{city}/{date}").Observe(0.01)
	ForecastAPICallsTotal.WithLabelValues("success").Inc()
	ForecastAPIDuration.WithLabelValues("server_error").Observe(0.1)
	ForecastAPIErrorsTotal.WithLabelValues("timeout").Inc()
	CircuitBreakerState.Set(2)
	PipelineRunsTotal.WithLabelValues("partial").Inc()
	PipelineCityOutcomesTotal.WithLabelValues("Durban", "ok").Inc()
	CacheHitsTotal.WithLabelValues("memcached").Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
}

func TestRecordSummaryQuery(t *testing.T) {
	SetTrackedCities([]string{"Durban", "Cape Town"})
	defer SetTrackedCities(nil)

	durban := testutil.ToFloat64(SummaryQueriesByCityTotal.WithLabelValues("Durban"))
	other := testutil.ToFloat64(SummaryQueriesByCityTotal.WithLabelValues("other"))
	english := testutil.ToFloat64(SummaryQueriesTotal.WithLabelValues("english"))

	RecordSummaryQuery("english", "Durban")
	RecordSummaryQuery("english", "durban")
	RecordSummaryQuery("english", "../../etc/passwd")

	if got := testutil.ToFloat64(SummaryQueriesByCityTotal.WithLabelValues("Durban")) - durban; got != 1 {
		t.Errorf("Durban queries delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SummaryQueriesByCityTotal.WithLabelValues("other")) - other; got != 2 {
		t.Errorf("other queries delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(SummaryQueriesTotal.WithLabelValues("english")) - english; got != 3 {
		t.Errorf("english queries delta = %v, want 3", got)
	}
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	for _, name := range []string{"httpRequestsTotal", "pipelineRunDurationSeconds", "go_goroutines"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
