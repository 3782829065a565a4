package forecast

import "strings"

// skyPhrases maps MET Norway locationforecast symbol codes (without variant suffix)
// to readable phrases. The "lights..." codes are the provider's own misspellings;
// the corrected spellings are accepted too.
var skyPhrases = map[string]string{
	"clearsky":     "Clear sky",
	"fair":         "Fair",
	"partlycloudy": "Partly cloudy",
	"cloudy":       "Cloudy",
	"fog":          "Fog",

	"lightrain":                  "Light rain",
	"rain":                       "Rain",
	"heavyrain":                  "Heavy rain",
	"lightrainandthunder":        "Light rain and thunder",
	"rainandthunder":             "Rain and thunder",
	"heavyrainandthunder":        "Heavy rain and thunder",
	"lightrainshowers":           "Light rain showers",
	"rainshowers":                "Rain showers",
	"heavyrainshowers":           "Heavy rain showers",
	"lightrainshowersandthunder": "Light rain showers and thunder",
	"rainshowersandthunder":      "Rain showers and thunder",
	"heavyrainshowersandthunder": "Heavy rain showers and thunder",

	"lightsleet":                   "Light sleet",
	"sleet":                        "Sleet",
	"heavysleet":                   "Heavy sleet",
	"lightsleetandthunder":         "Light sleet and thunder",
	"sleetandthunder":              "Sleet and thunder",
	"heavysleetandthunder":         "Heavy sleet and thunder",
	"lightsleetshowers":            "Light sleet showers",
	"sleetshowers":                 "Sleet showers",
	"heavysleetshowers":            "Heavy sleet showers",
	"lightssleetshowersandthunder": "Light sleet showers and thunder",
	"lightsleetshowersandthunder":  "Light sleet showers and thunder",
	"sleetshowersandthunder":       "Sleet showers and thunder",
	"heavysleetshowersandthunder":  "Heavy sleet showers and thunder",

	"lightsnow":                   "Light snow",
	"snow":                        "Snow",
	"heavysnow":                   "Heavy snow",
	"lightsnowandthunder":         "Light snow and thunder",
	"snowandthunder":              "Snow and thunder",
	"heavysnowandthunder":         "Heavy snow and thunder",
	"lightsnowshowers":            "Light snow showers",
	"snowshowers":                 "Snow showers",
	"heavysnowshowers":            "Heavy snow showers",
	"lightssnowshowersandthunder": "Light snow showers and thunder",
	"lightsnowshowersandthunder":  "Light snow showers and thunder",
	"snowshowersandthunder":       "Snow showers and thunder",
	"heavysnowshowersandthunder":  "Heavy snow showers and thunder",
}

// Describe returns the phrase for a symbol code such as "partlycloudy_day".
// The _day/_night/_polartwilight variant is ignored. ok is false for unknown codes.
func Describe(code string) (phrase string, ok bool) {
	base, _, _ := strings.Cut(strings.TrimSpace(code), "_")
	phrase, ok = skyPhrases[base]
	return phrase, ok
}
