package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/kjstillabower/daily-forecast-service/internal/cities"
	"github.com/kjstillabower/daily-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/daily-forecast-service/internal/models"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
	"github.com/kjstillabower/daily-forecast-service/internal/pipeline"
	"github.com/kjstillabower/daily-forecast-service/internal/validation"
)

// Summaries is the read side behind the forecast routes. Implemented by service.SummaryService.
type Summaries interface {
	Raw(ctx context.Context, city, date string) (models.Document, error)
	English(ctx context.Context, city, date string) (string, error)
	EnglishOffset(ctx context.Context, city string, offset int) (string, error)
	RSSOffset(ctx context.Context, city string, offset int) ([]byte, error)
}

// RunReporter exposes the most recent pipeline run. Implemented by pipeline.Pipeline.
type RunReporter interface {
	LastResult() (pipeline.RunResult, bool)
}

// HealthConfig holds what the health handler reports besides the pipeline state.
type HealthConfig struct {
	Service string
	Version string
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	summaries        Summaries
	runs             RunReporter
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. runs and healthConfig may be nil.
func NewHandler(summaries Summaries, runs RunReporter, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if healthConfig == nil {
		healthConfig = &HealthConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		summaries:    summaries,
		runs:         runs,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetRaw handles GET /raw/{city}/{date}. ?format=msgpack selects MessagePack over JSON.
func (h *Handler) GetRaw(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	city := vars["city"]
	doc, err := h.summaries.Raw(r.Context(), city, vars["date"])
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	if r.URL.Query().Get("format") == "msgpack" {
		writeMsgpack(w, r, doc)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetEnglish handles GET /english/{city}/{date}.
func (h *Handler) GetEnglish(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	city := vars["city"]
	sentence, err := h.summaries.English(r.Context(), city, vars["date"])
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	writeText(w, http.StatusOK, "text/plain; charset=utf-8", []byte(sentence))
}

// GetOffset handles GET /offset/{city}/{offsetDays}.
func (h *Handler) GetOffset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	city := vars["city"]
	offset, err := validation.ValidateOffset(vars["offsetDays"])
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	sentence, err := h.summaries.EnglishOffset(r.Context(), city, offset)
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	writeText(w, http.StatusOK, "text/plain; charset=utf-8", []byte(sentence))
}

// GetOffsetRSS handles GET /offset/rss/{city}/{offsetDays}.
func (h *Handler) GetOffsetRSS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	city := vars["city"]
	offset, err := validation.ValidateOffset(vars["offsetDays"])
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	item, err := h.summaries.RSSOffset(r.Context(), city, offset)
	if err != nil {
		writeForecastError(w, r, city, err)
		return
	}
	writeText(w, http.StatusOK, "application/rss+xml; charset=utf-8", item)
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	last, ran := pipeline.RunResult{}, false
	if h.runs != nil {
		last, ran = h.runs.LastResult()
	}
	result := computeHealthStatus(last, ran)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"pipeline": "pending"}
	if ran {
		checks["pipeline"] = "healthy"
		if last.Outcome() == "failed" {
			checks["pipeline"] = "unhealthy"
		}
	}
	if h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   h.healthConfig.Service,
		"version":   h.healthConfig.Version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ran {
		resp["lastRun"] = last.FinishedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus: shutting-down > degraded (last run failed every city) > healthy.
func computeHealthStatus(last pipeline.RunResult, ran bool) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if ran && last.Outcome() == "failed" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "pipeline_failed"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// GetStatus handles GET /status with the last pipeline run, or null before the first one.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var last *pipeline.RunResult
	if h.runs != nil {
		if res, ok := h.runs.LastResult(); ok {
			last = &res
		}
	}
	resp := map[string]interface{}{"lastRun": last}
	if last != nil {
		resp["outcome"] = last.Outcome()
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps read-side errors to a status code. The body is the same for all of them.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cities.ErrUnknownCity), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrInvalidDate),
		errors.Is(err, validation.ErrInvalidOffset),
		errors.Is(err, validation.ErrOffsetOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeMsgpack encodes with the json tags so both formats share field names.
func writeMsgpack(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/msgpack")
	w.WriteHeader(http.StatusOK)
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		observability.LoggerFrom(r.Context(), nil).Warn("msgpack encode failed", zap.Error(err))
	}
}

// writeForecastError writes the plain-text failure body callers match on.
func writeForecastError(w http.ResponseWriter, r *http.Request, city string, err error) {
	status := statusFor(err)
	logger := observability.LoggerFrom(r.Context(), nil)
	if status == http.StatusServiceUnavailable {
		logger.Warn("summary unavailable", zap.String("city", city), zap.Error(err))
	} else {
		logger.Debug("summary request rejected", zap.String("city", city), zap.Int("status", status), zap.Error(err))
	}
	writeText(w, status, "text/plain; charset=utf-8", []byte("Could not get weather info for "+city))
}
