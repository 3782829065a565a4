// Package service serves persisted summaries as documents, English sentences and RSS items.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/daily-forecast-service/internal/cache"
	"github.com/kjstillabower/daily-forecast-service/internal/cities"
	"github.com/kjstillabower/daily-forecast-service/internal/format"
	"github.com/kjstillabower/daily-forecast-service/internal/models"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
	"github.com/kjstillabower/daily-forecast-service/internal/validation"
)

// PublishedFunc reports when data was last refreshed. Wired to the pipeline's last run.
type PublishedFunc func() (time.Time, bool)

// Options configures a SummaryService.
type Options struct {
	// Location defines "today" for offsets. Nil means UTC.
	Location *time.Location
	// CacheTTL is how long loaded documents stay cached.
	CacheTTL time.Duration
	// CoalesceTimeout bounds a shared store load. Zero disables coalescing.
	CoalesceTimeout time.Duration
	Published       PublishedFunc
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SummaryService is the read side: city check, cache-aside load, then formatting.
type SummaryService struct {
	cities    format.CityLookup
	store     cache.DocumentLoader
	cache     cache.Cache
	formatter *format.Formatter
	coalescer *loadCoalescer
	location  *time.Location
	ttl       time.Duration
	published PublishedFunc
	now       func() time.Time
}

// NewSummaryService wires the read side. c may be nil to disable caching.
func NewSummaryService(lookup format.CityLookup, store cache.DocumentLoader, c cache.Cache, formatter *format.Formatter, opts Options) *SummaryService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &SummaryService{
		cities:    lookup,
		store:     store,
		cache:     c,
		formatter: formatter,
		location:  opts.Location,
		ttl:       opts.CacheTTL,
		published: opts.Published,
		now:       opts.Now,
	}
	if opts.CoalesceTimeout > 0 {
		s.coalescer = newLoadCoalescer(opts.CoalesceTimeout)
	}
	return s
}

// Raw returns the persisted document for city on date (YYYY-MM-DD).
func (s *SummaryService) Raw(ctx context.Context, city, date string) (models.Document, error) {
	observability.RecordSummaryQuery("raw", city)
	return s.document(ctx, city, date)
}

// English renders the sentence for city on date.
func (s *SummaryService) English(ctx context.Context, city, date string) (string, error) {
	observability.RecordSummaryQuery("english", city)
	doc, err := s.document(ctx, city, date)
	if err != nil {
		return "", err
	}
	day, err := validation.ValidateDate(date)
	if err != nil {
		return "", err
	}
	return s.formatter.Sentence(city, s.inZone(day), doc.Summary)
}

// EnglishOffset renders the sentence for today+offset days.
func (s *SummaryService) EnglishOffset(ctx context.Context, city string, offset int) (string, error) {
	return s.English(ctx, city, s.DateForOffset(offset))
}

// RSSOffset renders the RSS item for today+offset days. pubDate is the last pipeline run, or
// the document's fetch time before the first run of this process.
func (s *SummaryService) RSSOffset(ctx context.Context, city string, offset int) ([]byte, error) {
	observability.RecordSummaryQuery("rss", city)
	date := s.DateForOffset(offset)
	doc, err := s.document(ctx, city, date)
	if err != nil {
		return nil, err
	}
	published := doc.FetchedAt
	if s.published != nil {
		if t, ok := s.published(); ok {
			published = t
		}
	}
	day, err := validation.ValidateDate(date)
	if err != nil {
		return nil, err
	}
	return s.formatter.RSSItem(city, s.inZone(day), doc.Summary, published)
}

// DateForOffset returns today+offset as YYYY-MM-DD in the service's location.
func (s *SummaryService) DateForOffset(offset int) string {
	local := s.now().In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return midnight.AddDate(0, 0, offset).Format(validation.DateLayout)
}

// inZone moves a UTC-midnight date to midnight of the same calendar day in the service's location.
func (s *SummaryService) inZone(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.location)
}

func (s *SummaryService) document(ctx context.Context, city, date string) (models.Document, error) {
	if _, err := s.cities.Lookup(city); err != nil {
		return models.Document{}, err
	}
	if _, err := validation.ValidateDate(date); err != nil {
		return models.Document{}, err
	}
	key := models.DocumentKey(city, date)
	logger := observability.LoggerFrom(ctx, nil)

	if s.cache != nil {
		doc, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		case ok:
			observability.CacheHitsTotal.WithLabelValues("summary").Inc()
			logger.Debug("cache hit", zap.String("key", key))
			return doc, nil
		}
	}

	load := func(ctx context.Context) (models.Document, error) {
		doc, err := s.store.Load(ctx, city, date)
		if err != nil {
			return models.Document{}, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, doc, s.ttl); err != nil {
				observability.CacheErrorsTotal.WithLabelValues("set").Inc()
				logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return doc, nil
	}

	if s.coalescer == nil {
		doc, err := load(ctx)
		if err != nil {
			return models.Document{}, fmt.Errorf("load %s: %w", key, err)
		}
		return doc, nil
	}
	doc, shared, err := s.coalescer.Do(ctx, key, load)
	if err != nil {
		return models.Document{}, fmt.Errorf("load %s: %w", key, err)
	}
	logger.Debug("document loaded", zap.String("key", key), zap.Bool("coalesced", shared))
	return doc, nil
}

var _ format.CityLookup = (*cities.Registry)(nil)
