package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/daily-forecast-service/internal/astro"
	"github.com/kjstillabower/daily-forecast-service/internal/cache"
	"github.com/kjstillabower/daily-forecast-service/internal/cities"
	"github.com/kjstillabower/daily-forecast-service/internal/client"
	"github.com/kjstillabower/daily-forecast-service/internal/config"
	"github.com/kjstillabower/daily-forecast-service/internal/format"
	httphandler "github.com/kjstillabower/daily-forecast-service/internal/http"
	"github.com/kjstillabower/daily-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
	"github.com/kjstillabower/daily-forecast-service/internal/pipeline"
	"github.com/kjstillabower/daily-forecast-service/internal/service"
	"github.com/kjstillabower/daily-forecast-service/internal/store"
)

const serviceName = "daily-forecast-service"

var version = "dev"

func main() {
	logger, err := observability.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	registry := cities.Default()
	observability.SetTrackedCities(registry.Names())

	forecastClient, err := client.NewMetNoClient(client.Options{
		URL:             cfg.ForecastAPIURL,
		UserAgent:       cfg.ForecastUserAgent,
		Timeout:         cfg.ForecastAPITimeout,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxDelay:   cfg.RetryMaxDelay,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown,
	})
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}
	if cfg.BreakerFailures > 0 {
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.BreakerFailures), zap.Duration("cooldown", cfg.BreakerCooldown))
	}

	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("file store", zap.Error(err))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}
	warmer := cache.NewWarmer(cacheSvc, cfg.CacheTTL, logger)

	p := pipeline.New(registry.All(), forecastClient, fileStore, pipeline.Options{
		Location:         cfg.Location,
		DaysAhead:        cfg.DaysAhead,
		Parallel:         cfg.Parallel,
		CircularWindMean: cfg.CircularWindMean,
		OnSaved:          warmer.Refresh,
	}, logger)

	summaries := service.NewSummaryService(registry, fileStore, cacheSvc,
		format.New(registry, astro.New(cfg.Location), cfg.Location),
		service.Options{
			Location:        cfg.Location,
			CacheTTL:        cfg.CacheTTL,
			CoalesceTimeout: cfg.CoalesceTimeout,
			Published: func() (time.Time, bool) {
				res, ok := p.LastResult()
				return res.FinishedAt, ok
			},
		})

	if cfg.WarmCache {
		keys, err := fileStore.Keys()
		if err != nil {
			logger.Warn("list stored documents", zap.Error(err))
		}
		refs := warmRefs(keys, summaries.DateForOffset(0))
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, fileStore, refs); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	scheduler := pipeline.NewScheduler(p, cfg.PipelineInterval, cfg.PipelineRunTimeout, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{Service: serviceName, Version: version}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(summaries, p, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Compress:       cfg.Compress,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("timezone", cfg.Timezone),
			zap.String("data_dir", fileStore.Dir()),
			zap.Duration("interval", cfg.PipelineInterval))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// warmRefs picks the stored documents dated today or later. Keys are "{city}-{YYYY-MM-DD}".
func warmRefs(keys []string, today string) []cache.Ref {
	const dateLen = len("2006-01-02")
	var refs []cache.Ref
	for _, key := range keys {
		if len(key) < dateLen+2 || key[len(key)-dateLen-1] != '-' {
			continue
		}
		date := key[len(key)-dateLen:]
		if date < today {
			continue
		}
		refs = append(refs, cache.Ref{City: key[:len(key)-dateLen-1], Date: date})
	}
	return refs
}
