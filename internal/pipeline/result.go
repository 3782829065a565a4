package pipeline

import (
	"errors"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/client"
	"github.com/kjstillabower/daily-forecast-service/internal/forecast"
)

var errPersist = errors.New("persist document")

// RunResult describes one pipeline run. It replaces process-wide "last updated" state: the HTTP
// layer reads it through Pipeline.LastResult.
type RunResult struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Dates      []string     `json:"dates"`
	Cities     []CityResult `json:"cities"`
}

// CityResult is the outcome for one city. Saved lists the dates written, which may be non-empty
// even when Err is set.
type CityResult struct {
	City     string   `json:"city"`
	Saved    []string `json:"saved,omitempty"`
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
	Category string   `json:"category,omitempty"`
}

// OK reports whether every target date was saved.
func (c CityResult) OK() bool { return c.Err == nil }

// Succeeded counts cities with no error.
func (r RunResult) Succeeded() int {
	n := 0
	for _, c := range r.Cities {
		if c.OK() {
			n++
		}
	}
	return n
}

// Failed counts cities with an error.
func (r RunResult) Failed() int { return len(r.Cities) - r.Succeeded() }

// Outcome is "ok" when every city succeeded, "failed" when none did and "partial" otherwise.
func (r RunResult) Outcome() string {
	switch ok := r.Succeeded(); {
	case ok == len(r.Cities):
		return "ok"
	case ok == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Categorize maps a per-city error to a stable label for logs and metrics.
func Categorize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrProviderUnavailable):
		return "provider_" + string(client.CategorizeError(err))
	case errors.Is(err, forecast.ErrMalformedSample):
		return "malformed_sample"
	case errors.Is(err, forecast.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, errPersist):
		return "persistence"
	}
	return "unknown"
}
