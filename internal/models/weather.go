package models

import "time"

// Sample is one forecast data point as returned by the provider.
// Required readings are pointers so a missing field can be told apart from a zero reading.
type Sample struct {
	Time              time.Time `json:"time"`
	AirTemperature    *float64  `json:"airTemperature"`
	WindFromDirection *float64  `json:"windFromDirection"`
	WindSpeed         *float64  `json:"windSpeed"`
	Precipitation1h   *float64  `json:"precipitation1h,omitempty"`
	Symbol12h         string    `json:"symbol12h,omitempty"`
}

// DailySummary is the reduced record for one city and calendar day.
type DailySummary struct {
	TemperatureMin     float64 `json:"temperatureMin"`
	TemperatureMax     float64 `json:"temperatureMax"`
	PrecipitationTotal float64 `json:"precipitationTotal"`
	WindDirection      string  `json:"windDirection"`
	WindSpeedMax       float64 `json:"windSpeedMax"`
	BeaufortScale      int     `json:"beaufortScale"`
	MorningDescription string  `json:"morningDescription,omitempty"`
	EveningDescription string  `json:"eveningDescription,omitempty"`
}

// Document is the persisted form of a DailySummary, keyed by city and date.
// Samples are the raw inputs kept for audit and replay.
type Document struct {
	City      string       `json:"city"`
	Date      string       `json:"date"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Summary   DailySummary `json:"summary"`
	Samples   []Sample     `json:"samples"`
}

// Key returns the storage key "{city}-{date}".
func (d Document) Key() string {
	return DocumentKey(d.City, d.Date)
}

// DocumentKey builds the storage key for a city and YYYY-MM-DD date.
func DocumentKey(city, date string) string {
	return city + "-" + date
}

// Float returns a pointer to v. Handy for building samples in code and tests.
func Float(v float64) *float64 {
	return &v
}
