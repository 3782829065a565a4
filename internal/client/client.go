package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
	"github.com/kjstillabower/daily-forecast-service/internal/observability"
)

// ForecastClient returns the provider's time series for a coordinate.
type ForecastClient interface {
	Forecast(ctx context.Context, lat, lon float64) ([]models.Sample, error)
}

var (
	// ErrProviderUnavailable wraps every failure returned by Forecast.
	ErrProviderUnavailable = errors.New("forecast provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamFailure     = errors.New("upstream failure")
	ErrRejected            = errors.New("request rejected by provider")
	ErrCircuitOpen         = errors.New("circuit open")
	ErrMissingUserAgent    = errors.New("user agent is required")
)

const maxBodyBytes = 8 << 20

// Options configures a MetNoClient. Zero values take the defaults noted per field.
type Options struct {
	URL       string
	UserAgent string
	// Timeout caps a single provider call. Default 15s.
	Timeout time.Duration
	// RetryAttempts is the total number of attempts. Default 1 (no retry).
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// BreakerFailures is the consecutive failure count that opens the breaker. 0 disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// MetNoClient calls the MET Norway locationforecast 2.0 compact endpoint.
type MetNoClient struct {
	apiURL         string
	userAgent      string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
}

// NewMetNoClient validates opts and returns a client.
func NewMetNoClient(opts Options) (*MetNoClient, error) {
	if opts.UserAgent == "" {
		return nil, ErrMissingUserAgent
	}
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid forecast API URL %q: %w", opts.URL, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &MetNoClient{
		apiURL:         opts.URL,
		userAgent:      opts.UserAgent,
		timeout:        opts.Timeout,
		client:         httpClient,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
	}
	if opts.BreakerFailures > 0 {
		c.breaker = newBreaker(opts.BreakerFailures, opts.BreakerCooldown)
	}
	return c, nil
}

func newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metno",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			observability.CircuitBreakerState.Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

type metNoResponse struct {
	Properties struct {
		Timeseries []metNoStep `json:"timeseries"`
	} `json:"properties"`
}

type metNoStep struct {
	Time string `json:"time"`
	Data struct {
		Instant struct {
			Details struct {
				AirTemperature    *float64 `json:"air_temperature"`
				WindFromDirection *float64 `json:"wind_from_direction"`
				WindSpeed         *float64 `json:"wind_speed"`
			} `json:"details"`
		} `json:"instant"`
		Next1Hours *struct {
			Details struct {
				PrecipitationAmount *float64 `json:"precipitation_amount"`
			} `json:"details"`
		} `json:"next_1_hours"`
		Next12Hours *struct {
			Summary struct {
				SymbolCode string `json:"symbol_code"`
			} `json:"summary"`
		} `json:"next_12_hours"`
	} `json:"data"`
}

// Forecast fetches the time series for lat/lon. Every error wraps ErrProviderUnavailable.
func (c *MetNoClient) Forecast(ctx context.Context, lat, lon float64) ([]models.Sample, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ForecastAPIRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return nil, c.fail(ctx.Err())
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		samples, err := c.execute(ctx, lat, lon)
		if err == nil {
			return samples, nil
		}
		lastErr = err
		if !c.isRetryable(err) {
			return nil, c.fail(err)
		}
	}

	if c.retryAttempts > 1 {
		lastErr = fmt.Errorf("exhausted %d attempts: %w", c.retryAttempts, lastErr)
	}
	return nil, c.fail(lastErr)
}

func (c *MetNoClient) fail(err error) error {
	observability.ForecastAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

func (c *MetNoClient) execute(ctx context.Context, lat, lon float64) ([]models.Sample, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, lat, lon)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, lat, lon)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]models.Sample), nil
}

func (c *MetNoClient) callAPI(ctx context.Context, lat, lon float64) ([]models.Sample, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, lat, lon)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		observability.ForecastAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.ForecastAPICallsTotal.WithLabelValues(status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var apiResp metNoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return mapResponse(apiResp)
}

func (c *MetNoClient) isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrRejected), errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstreamFailure), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return CategorizeError(err) == ErrorCategoryNetwork
}

func (c *MetNoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// buildRequest truncates coordinates to 4 decimals; the provider rejects more and caches on them.
func (c *MetNoClient) buildRequest(ctx context.Context, lat, lon float64) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params := u.Query()
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
}

// mapResponse converts timeseries steps to samples in provider order. Missing instant readings are
// left nil for the aggregator to reject.
func mapResponse(apiResp metNoResponse) ([]models.Sample, error) {
	samples := make([]models.Sample, 0, len(apiResp.Properties.Timeseries))
	for i, step := range apiResp.Properties.Timeseries {
		ts, err := time.Parse(time.RFC3339, step.Time)
		if err != nil {
			return nil, fmt.Errorf("parse timeseries[%d] time %q: %w", i, step.Time, err)
		}
		details := step.Data.Instant.Details
		s := models.Sample{
			Time:              ts.UTC(),
			AirTemperature:    details.AirTemperature,
			WindFromDirection: details.WindFromDirection,
			WindSpeed:         details.WindSpeed,
		}
		if step.Data.Next1Hours != nil {
			s.Precipitation1h = step.Data.Next1Hours.Details.PrecipitationAmount
		}
		if step.Data.Next12Hours != nil {
			s.Symbol12h = step.Data.Next12Hours.Summary.SymbolCode
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}
