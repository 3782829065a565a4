// Package forecast reduces a day of provider samples into a DailySummary.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

var (
	// ErrInsufficientData is returned when there are no samples to aggregate.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMalformedSample is returned when a sample lacks a required reading.
	ErrMalformedSample = errors.New("malformed sample")
)

// Anchor hours (local time) for the morning and evening sky descriptions.
const (
	MorningHour = 6
	EveningHour = 18
)

// Aggregator reduces the samples of one calendar day into a DailySummary.
type Aggregator struct {
	// Location is used to compute the local hour of each sample. Nil means UTC.
	Location *time.Location
	// CircularWindMean averages bearings as unit vectors instead of plain numbers.
	// Off by default: the arithmetic mean is kept for compatibility with existing documents.
	CircularWindMean bool
}

// Aggregate is shorthand for an Aggregator with the given location and default options.
func Aggregate(samples []models.Sample, loc *time.Location) (models.DailySummary, error) {
	return Aggregator{Location: loc}.Aggregate(samples)
}

// Aggregate builds the summary. The caller is responsible for passing only samples that
// fall on the target day. A missing 06:00 or 18:00 sample leaves that description empty.
func (a Aggregator) Aggregate(samples []models.Sample) (models.DailySummary, error) {
	if len(samples) == 0 {
		return models.DailySummary{}, ErrInsufficientData
	}
	for i, s := range samples {
		if err := checkSample(s); err != nil {
			return models.DailySummary{}, fmt.Errorf("sample %d (%s): %w", i, s.Time.Format(time.RFC3339), err)
		}
	}

	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}

	first := samples[0]
	summary := models.DailySummary{
		TemperatureMin: *first.AirTemperature,
		TemperatureMax: *first.AirTemperature,
		WindSpeedMax:   *first.WindSpeed,
	}
	bearings := make([]float64, 0, len(samples))
	var sawMorning, sawEvening bool
	for _, s := range samples {
		temp := *s.AirTemperature
		if temp < summary.TemperatureMin {
			summary.TemperatureMin = temp
		}
		if temp > summary.TemperatureMax {
			summary.TemperatureMax = temp
		}
		if *s.WindSpeed > summary.WindSpeedMax {
			summary.WindSpeedMax = *s.WindSpeed
		}
		if s.Precipitation1h != nil {
			summary.PrecipitationTotal += *s.Precipitation1h
		}
		bearings = append(bearings, *s.WindFromDirection)

		switch s.Time.In(loc).Hour() {
		case MorningHour:
			if !sawMorning {
				sawMorning = true
				summary.MorningDescription, _ = Describe(s.Symbol12h)
			}
		case EveningHour:
			if !sawEvening {
				sawEvening = true
				summary.EveningDescription, _ = Describe(s.Symbol12h)
			}
		}
	}

	mean := arithmeticMean(bearings)
	if a.CircularWindMean {
		mean = circularMean(bearings)
	}
	summary.WindDirection = CompassPoint(mean)
	summary.BeaufortScale = Beaufort(summary.WindSpeedMax)
	return summary, nil
}

func checkSample(s models.Sample) error {
	switch {
	case s.AirTemperature == nil:
		return fmt.Errorf("%w: missing air temperature", ErrMalformedSample)
	case s.WindFromDirection == nil:
		return fmt.Errorf("%w: missing wind direction", ErrMalformedSample)
	case s.WindSpeed == nil:
		return fmt.Errorf("%w: missing wind speed", ErrMalformedSample)
	}
	return nil
}

func arithmeticMean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// circularMean averages bearings as unit vectors, so 350 and 10 give 0 rather than 180.
// Opposing bearings cancel out to a zero vector, which yields 0 (north).
func circularMean(bearings []float64) float64 {
	var x, y float64
	for _, b := range bearings {
		rad := b * math.Pi / 180
		x += math.Cos(rad)
		y += math.Sin(rad)
	}
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
