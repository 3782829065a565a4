package forecast

// beaufortThresholds are the upper bounds (m/s, exclusive) of classes 0..11.
// Anything at or above the last threshold is class 12.
var beaufortThresholds = [12]float64{0.5, 1.5, 3.3, 5.5, 7.9, 10.7, 13.8, 17.1, 20.7, 24.4, 28.4, 32.6}

var beaufortNames = [13]string{
	"calm",
	"light air",
	"light breeze",
	"gentle breeze",
	"moderate breeze",
	"fresh breeze",
	"strong breeze",
	"near gale",
	"gale",
	"strong gale",
	"storm",
	"violent storm",
	"hurricane",
}

// Beaufort buckets a wind speed in m/s into the 0..12 scale.
// A speed equal to a threshold belongs to the next class up.
func Beaufort(speed float64) int {
	for i, limit := range beaufortThresholds {
		if speed < limit {
			return i
		}
	}
	return len(beaufortThresholds)
}

// BeaufortName returns the named strength for a class, e.g. 3 -> "gentle breeze".
// Out-of-range classes are clamped.
func BeaufortName(scale int) string {
	if scale < 0 {
		scale = 0
	}
	if scale >= len(beaufortNames) {
		scale = len(beaufortNames) - 1
	}
	return beaufortNames[scale]
}
