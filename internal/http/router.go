package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/daily-forecast-service/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger *zap.Logger
	// Limiter guards the forecast routes. Nil disables rate limiting.
	Limiter *rate.Limiter
	// RequestTimeout bounds forecast route handling. Zero disables it.
	RequestTimeout time.Duration
	// Compress gzips responses for clients that accept it.
	Compress bool
}

// NewRouter mounts the forecast, health, status and metrics routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	api.Use(TimeoutMiddleware(opts.RequestTimeout))
	api.HandleFunc("/raw/{city}/{date}", h.GetRaw).Methods(http.MethodGet)
	api.HandleFunc("/english/{city}/{date}", h.GetEnglish).Methods(http.MethodGet)
	api.HandleFunc("/offset/rss/{city}/{offsetDays}", h.GetOffsetRSS).Methods(http.MethodGet)
	api.HandleFunc("/offset/{city}/{offsetDays}", h.GetOffset).Methods(http.MethodGet)

	var handler http.Handler = router
	if opts.Compress {
		handler = handlers.CompressHandler(handler)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)(handler)
}

// recoveryLogger adapts zap to the gorilla/handlers recovery logger.
type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", zap.String("panic", fmt.Sprint(v...)))
}
