// Package format renders daily summaries as English sentences and RSS items.
package format

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/astro"
	"github.com/kjstillabower/daily-forecast-service/internal/cities"
	"github.com/kjstillabower/daily-forecast-service/internal/forecast"
	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

const missingDescription = "no forecast"

// Sky computes sunrise, sunset and lunar illumination. Implemented by astro.Calculator.
type Sky interface {
	SunTimes(date time.Time, lat, lon float64) (sunrise, sunset time.Time, err error)
	MoonIllumination(t time.Time) float64
}

// CityLookup resolves a city name to coordinates. Implemented by cities.Registry.
type CityLookup interface {
	Lookup(name string) (cities.City, error)
}

// Formatter renders summaries for one time zone.
type Formatter struct {
	cities   CityLookup
	sky      Sky
	location *time.Location
}

// New returns a Formatter. loc is the zone dates and clock times are rendered in.
func New(lookup CityLookup, sky Sky, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{cities: lookup, sky: sky, location: loc}
}

// Sentence renders the summary for city on date as one line of English, e.g.
//
//	Weather Durban, Sat 19/10: morning Partly cloudy, evening Light rain. Temp 18C - 24C.
//	Wind NE gentle breeze. Rain 1.2mm. Sunrise 05:02 Sunset 17:58. Waxing gibbous moon
func (f *Formatter) Sentence(city string, date time.Time, s models.DailySummary) (string, error) {
	c, err := f.cities.Lookup(city)
	if err != nil {
		return "", err
	}
	local := date.In(f.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, f.location)

	sun := "Sunrise --:-- Sunset --:--"
	rise, set, err := f.sky.SunTimes(day, c.Latitude, c.Longitude)
	switch {
	case err == nil:
		sun = fmt.Sprintf("Sunrise %s Sunset %s", rise.In(f.location).Format("15:04"), set.In(f.location).Format("15:04"))
	case !errors.Is(err, astro.ErrNoSunrise):
		return "", fmt.Errorf("sun times for %s: %w", city, err)
	}
	moon := MoonPhase(f.sky.MoonIllumination(day.Add(12 * time.Hour)))

	var b strings.Builder
	fmt.Fprintf(&b, "Weather %s, %s: ", city, day.Format("Mon 02/01"))
	fmt.Fprintf(&b, "morning %s, evening %s. ", orMissing(s.MorningDescription), orMissing(s.EveningDescription))
	fmt.Fprintf(&b, "Temp %dC - %dC. ", roundInt(s.TemperatureMin), roundInt(s.TemperatureMax))
	fmt.Fprintf(&b, "Wind %s %s. ", s.WindDirection, forecast.BeaufortName(s.BeaufortScale))
	fmt.Fprintf(&b, "Rain %smm. ", formatAmount(s.PrecipitationTotal))
	fmt.Fprintf(&b, "%s. %s", sun, moon)
	return b.String(), nil
}

// Item is an RSS 2.0 <item>.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Description string   `xml:"description"`
	GUID        GUID     `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
}

// GUID is an RSS item identifier that is not a link.
type GUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RSSItem renders the summary as an RSS <item> fragment. published is the time the
// data was last refreshed and becomes the item's pubDate.
func (f *Formatter) RSSItem(city string, date time.Time, s models.DailySummary, published time.Time) ([]byte, error) {
	sentence, err := f.Sentence(city, date, s)
	if err != nil {
		return nil, err
	}
	key := date.In(f.location).Format("2006-01-02")
	item := Item{
		Title:       "Weather " + city + " " + key,
		Description: sentence,
		GUID:        GUID{IsPermaLink: false, Value: models.DocumentKey(city, key)},
		PubDate:     published.In(f.location).Format(time.RFC1123Z),
	}
	out, err := xml.MarshalIndent(item, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rss item: %w", err)
	}
	return out, nil
}

// MoonPhase names the phase for an illuminated fraction in 0..1, rounded to the nearest percent.
func MoonPhase(illumination float64) string {
	p := int(math.Round(illumination * 100))
	switch {
	case p <= 0:
		return "New moon"
	case p < 25:
		return "Waxing crescent moon"
	case p == 25:
		return "First quarter moon"
	case p < 50:
		return "Waxing gibbous moon"
	case p == 50:
		return "Full moon"
	case p < 75:
		return "Waning gibbous moon"
	case p == 75:
		return "Last quarter moon"
	default:
		return "Waning crescent moon"
	}
}

func orMissing(s string) string {
	if s == "" {
		return missingDescription
	}
	return s
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

// formatAmount prints at most one decimal and drops a trailing ".0".
func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
