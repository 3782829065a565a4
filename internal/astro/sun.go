// Package astro computes sunrise, sunset and lunar illumination for a date and position.
package astro

import (
	"errors"
	"time"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/rise"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// ErrNoSunrise is returned for polar day or polar night, when the sun does not cross the horizon.
var ErrNoSunrise = errors.New("sun does not rise or set on this date")

// Calculator reports times in Location (UTC when nil).
type Calculator struct {
	Location *time.Location
}

// New returns a Calculator reporting times in loc.
func New(loc *time.Location) *Calculator {
	return &Calculator{Location: loc}
}

func (c *Calculator) location() *time.Location {
	if c == nil || c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// SunTimes returns sunrise and sunset for the calendar day of date (taken in the
// calculator's location) at the given latitude and longitude (east positive).
func (c *Calculator) SunTimes(date time.Time, lat, lon float64) (sunrise, sunset time.Time, err error) {
	loc := c.location()
	y, m, d := date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	jd := julian.CalendarGregorianToJD(y, int(m), float64(d))
	α, δ := solar.ApparentEquatorial(jd)
	// meeus counts longitude positive west
	pos := globe.Coord{Lat: unit.AngleFromDeg(lat), Lon: unit.AngleFromDeg(-lon)}

	tRise, _, tSet, err := rise.ApproxTimes(pos, rise.Stdh0Solar, sidereal.Apparent0UT(jd), α, δ)
	if errors.Is(err, rise.ErrorCircumpolar) {
		return time.Time{}, time.Time{}, ErrNoSunrise
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	sunrise = day.Add(time.Duration(tRise.Sec() * float64(time.Second)))
	sunset = day.Add(time.Duration(tSet.Sec() * float64(time.Second)))
	if sunset.Before(sunrise) {
		sunset = sunset.Add(24 * time.Hour)
	}
	return sunrise.In(loc), sunset.In(loc), nil
}
