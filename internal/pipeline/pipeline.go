// Package pipeline fetches provider forecasts for every registered city, reduces each target day
// to a summary and persists it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/daily-forecast-service/internal/cities"
	"github.com/kjstillabower/daily-forecast-service/internal/client"
	"github.com/kjstillabower/daily-forecast-service/internal/forecast"
	"github.com/kjstillabower/daily-forecast-service/internal/models"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
)

const dateLayout = "2006-01-02"

// Saver persists documents. Implemented by store.FileStore.
type Saver interface {
	Save(ctx context.Context, doc models.Document) error
}

// SavedHook runs after each successful write. Errors are logged and do not fail the city.
type SavedHook func(ctx context.Context, doc models.Document) error

// Options configures a Pipeline.
type Options struct {
	// Location defines calendar days and the local hours used for morning/evening. Nil means UTC.
	Location *time.Location
	// DaysAhead is how many days starting tomorrow are summarised. Values < 1 mean 1.
	DaysAhead int
	// Parallel processes cities concurrently instead of in registry order.
	Parallel bool
	// CircularWindMean is passed through to the aggregator.
	CircularWindMean bool
	OnSaved          SavedHook
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Pipeline runs one refresh over all cities. Safe for concurrent use; LastResult may be read
// while Run is in progress.
type Pipeline struct {
	cities     []cities.City
	provider   client.ForecastClient
	saver      Saver
	aggregator forecast.Aggregator
	location   *time.Location
	daysAhead  int
	parallel   bool
	onSaved    SavedHook
	now        func() time.Time
	logger     *zap.Logger

	mu   sync.RWMutex
	last *RunResult
}

// New returns a Pipeline over list.
func New(list []cities.City, provider client.ForecastClient, saver Saver, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DaysAhead < 1 {
		opts.DaysAhead = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cities:     list,
		provider:   provider,
		saver:      saver,
		aggregator: forecast.Aggregator{Location: opts.Location, CircularWindMean: opts.CircularWindMean},
		location:   opts.Location,
		daysAhead:  opts.DaysAhead,
		parallel:   opts.Parallel,
		onSaved:    opts.OnSaved,
		now:        opts.Now,
		logger:     logger,
	}
}

// Run refreshes every city once. Per-city failures are logged and recorded in the result;
// they never stop the remaining cities.
func (p *Pipeline) Run(ctx context.Context) RunResult {
	started := p.now()
	res := RunResult{
		ID:        uuid.NewString(),
		StartedAt: started,
		Dates:     p.targetDates(started),
		Cities:    make([]CityResult, len(p.cities)),
	}
	logger := p.logger.With(zap.String("run_id", res.ID))
	ctx = observability.WithCorrelationID(ctx, res.ID)
	logger.Info("pipeline run started", zap.Strings("dates", res.Dates), zap.Int("cities", len(p.cities)))

	if p.parallel {
		var wg sync.WaitGroup
		for i, c := range p.cities {
			wg.Add(1)
			go func(i int, c cities.City) {
				defer wg.Done()
				res.Cities[i] = p.processCity(ctx, logger, c, res.Dates)
			}(i, c)
		}
		wg.Wait()
	} else {
		for i, c := range p.cities {
			res.Cities[i] = p.processCity(ctx, logger, c, res.Dates)
		}
	}

	res.FinishedAt = p.now()
	p.record(res)
	logger.Info("pipeline run finished",
		zap.String("outcome", res.Outcome()),
		zap.Int("succeeded", res.Succeeded()),
		zap.Int("failed", res.Failed()),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)))
	return res
}

// LastResult returns the most recent completed run, or false before the first run finishes.
func (p *Pipeline) LastResult() (RunResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return RunResult{}, false
	}
	return *p.last, true
}

func (p *Pipeline) record(res RunResult) {
	p.mu.Lock()
	p.last = &res
	p.mu.Unlock()

	observability.PipelineRunsTotal.WithLabelValues(res.Outcome()).Inc()
	observability.PipelineRunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	observability.PipelineLastRunTimestamp.Set(float64(res.FinishedAt.Unix()))
}

// targetDates returns tomorrow and the following days in the pipeline's location.
func (p *Pipeline) targetDates(now time.Time) []string {
	local := now.In(p.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location)
	dates := make([]string, 0, p.daysAhead)
	for i := 1; i <= p.daysAhead; i++ {
		dates = append(dates, midnight.AddDate(0, 0, i).Format(dateLayout))
	}
	return dates
}

func (p *Pipeline) processCity(ctx context.Context, logger *zap.Logger, c cities.City, dates []string) CityResult {
	logger = logger.With(zap.String("city", c.Name))
	logger.Info("updating city")
	result := CityResult{City: c.Name}

	samples, err := p.provider.Forecast(ctx, c.Latitude, c.Longitude)
	if err != nil {
		return p.cityFailed(logger, result, err)
	}
	fetchedAt := p.now()

	var errs []error
	for _, date := range dates {
		doc, err := p.buildDocument(c.Name, date, fetchedAt, samples)
		if err == nil {
			err = p.saver.Save(ctx, doc)
			if err != nil {
				err = fmt.Errorf("%w: %w", errPersist, err)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", date, err))
			continue
		}
		observability.DocumentsPersistedTotal.Inc()
		result.Saved = append(result.Saved, date)
		if p.onSaved != nil {
			if err := p.onSaved(ctx, doc); err != nil {
				logger.Warn("post-save hook failed", zap.String("date", date), zap.Error(err))
			}
		}
	}
	if len(errs) > 0 {
		return p.cityFailed(logger, result, errors.Join(errs...))
	}

	observability.PipelineCityOutcomesTotal.WithLabelValues(c.Name, "ok").Inc()
	logger.Info("city updated", zap.Strings("dates", result.Saved))
	return result
}

func (p *Pipeline) cityFailed(logger *zap.Logger, result CityResult, err error) CityResult {
	category := Categorize(err)
	result.Err = err
	result.Error = err.Error()
	result.Category = category
	observability.PipelineCityOutcomesTotal.WithLabelValues(result.City, category).Inc()
	logger.Error("city update failed",
		zap.String("error_category", category),
		zap.Strings("saved_dates", result.Saved),
		zap.Error(err))
	return result
}

// buildDocument filters samples to date and aggregates them.
func (p *Pipeline) buildDocument(city, date string, fetchedAt time.Time, samples []models.Sample) (models.Document, error) {
	day := SamplesOn(samples, date, p.location)
	summary, err := p.aggregator.Aggregate(day)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{
		City:      city,
		Date:      date,
		FetchedAt: fetchedAt.UTC(),
		Summary:   summary,
		Samples:   day,
	}, nil
}

// SamplesOn returns the samples whose timestamp falls on date (YYYY-MM-DD) in loc, in input order.
func SamplesOn(samples []models.Sample, date string, loc *time.Location) []models.Sample {
	var out []models.Sample
	for _, s := range samples {
		if s.Time.In(loc).Format(dateLayout) == date {
			out = append(out, s)
		}
	}
	return out
}
