package forecast

import "math"

// compassPoints lists the 8 sector labels clockwise from north.
var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

const sectorWidth = 360.0 / 8

// CompassPoint maps a bearing in degrees to one of N, NE, E, SE, S, SW, W, NW.
// Any real input is accepted: the bearing is shifted by half a sector so that named
// directions sit in the middle of their sector, then wrapped into [0, 360).
// NaN and infinities have no direction and map to "N".
func CompassPoint(bearing float64) string {
	if math.IsNaN(bearing) || math.IsInf(bearing, 0) {
		return compassPoints[0]
	}
	shifted := math.Mod(bearing+sectorWidth/2, 360)
	if shifted < 0 {
		shifted += 360
	}
	idx := int(shifted / sectorWidth)
	// float rounding on inputs like -1e-15 can land exactly on 360
	if idx >= len(compassPoints) {
		idx = 0
	}
	return compassPoints[idx]
}
