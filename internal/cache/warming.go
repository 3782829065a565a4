package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
	"github.com/kjstillabower/daily-forecast-service/internal/store"
)

// DocumentLoader reads persisted documents. Implemented by store.FileStore.
type DocumentLoader interface {
	Load(ctx context.Context, city, date string) (models.Document, error)
}

// Ref names one document.
type Ref struct {
	City string
	Date string
}

// Warmer keeps the cache in step with the store: the pipeline calls Refresh after each write,
// and startup calls Warm for the documents readers are about to ask for.
type Warmer struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewWarmer returns a Warmer writing entries with ttl.
func NewWarmer(c Cache, ttl time.Duration, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{cache: c, ttl: ttl, logger: logger}
}

// Refresh replaces the cached copy of doc. Matches the pipeline's OnSaved hook.
// When the write fails the old entry is evicted so readers fall through to the store.
func (w *Warmer) Refresh(ctx context.Context, doc models.Document) error {
	if err := w.cache.Set(ctx, doc.Key(), doc, w.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("refresh").Inc()
		if delErr := w.cache.Delete(ctx, doc.Key()); delErr != nil {
			w.logger.Warn("evict stale entry", zap.String("key", doc.Key()), zap.Error(delErr))
		}
		return fmt.Errorf("refresh %s: %w", doc.Key(), err)
	}
	return nil
}

// Warm loads refs concurrently from loader into the cache. Documents the store cannot serve are skipped;
// other failures are joined into the returned error.
func (w *Warmer) Warm(ctx context.Context, loader DocumentLoader, refs []Ref) error {
	start := time.Now()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		warmed int
	)
	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := loader.Load(ctx, ref.City, ref.Date)
			if err == nil {
				err = w.Refresh(ctx, doc)
			} else if errors.Is(err, store.ErrPersistenceUnavailable) {
				w.logger.Debug("skip warming", zap.String("key", models.DocumentKey(ref.City, ref.Date)), zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("warm %s: %w", models.DocumentKey(ref.City, ref.Date), err))
				return
			}
			warmed++
		}()
	}
	wg.Wait()

	w.logger.Info("cache warming complete",
		zap.Int("requested", len(refs)),
		zap.Int("warmed", warmed),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}
