package astro

import (
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonillum"
)

// MoonIllumination returns the illuminated fraction (0..1) of the Moon's disc at t.
func (c *Calculator) MoonIllumination(t time.Time) float64 {
	jde := julian.TimeToJD(t.UTC())
	return base.Illuminated(moonillum.PhaseAngle3(jde))
}
